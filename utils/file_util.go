package utils

import (
	"archive/zip"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
)

func Exists(filePath string) bool {
	_, err := os.Stat(filePath)
	return !os.IsNotExist(err)
}

func EnsureDir(dir string, perm os.FileMode) error {
	if Exists(dir) {
		return nil
	}
	if err := os.MkdirAll(dir, perm); err != nil {
		return fmt.Errorf("failed to create directory: '%s', error: '%s'", dir, err.Error())
	}
	return nil
}

/*
ListNames sorted names of the entries under dir, dirs selects directories or files
*/
func ListNames(dir string, dirs bool) ([]string, *errs.Error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errs.New(core.ErrIOReadFail, err)
	}
	res := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() == dirs {
			res = append(res, e.Name())
		}
	}
	slices.Sort(res)
	return res, nil
}

/*
WriteFile writes data to path through a temp file, so readers never see a partial file
*/
func WriteFile(path string, data []byte) *errs.Error {
	if err := EnsureDir(filepath.Dir(path), 0755); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	return nil
}

func WriteCsvFile(path string, rows [][]string, compress bool) *errs.Error {
	var fileWriter io.Writer
	if err := EnsureDir(filepath.Dir(path), 0755); err != nil {
		return errs.New(core.ErrIOWriteFail, err)
	}
	if compress {
		zipFile, err_ := os.Create(strings.Replace(path, ".csv", ".zip", 1))
		if err_ != nil {
			return errs.New(core.ErrIOWriteFail, err_)
		}
		defer zipFile.Close()
		zipWriter := zip.NewWriter(zipFile)
		defer zipWriter.Close()
		header := &zip.FileHeader{
			Name:     filepath.Base(path),
			Method:   zip.Deflate,
			Modified: time.Now(),
		}
		fileWriter, err_ = zipWriter.CreateHeader(header)
		if err_ != nil {
			return errs.New(core.ErrIOWriteFail, err_)
		}
	} else {
		file, err_ := os.Create(path)
		if err_ != nil {
			return errs.New(core.ErrIOWriteFail, err_)
		}
		defer file.Close()
		fileWriter = file
	}
	writer := csv.NewWriter(fileWriter)
	err_ := writer.WriteAll(rows)
	if err_ != nil {
		return errs.New(core.ErrIOWriteFail, err_)
	}
	return nil
}
