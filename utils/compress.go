package utils

import (
	"bytes"
	"compress/zlib"
	"io"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
)

func Compress(data []byte) ([]byte, *errs.Error) {
	var b bytes.Buffer
	w := zlib.NewWriter(&b)
	_, err_ := w.Write(data)
	if err_ != nil {
		return nil, errs.New(core.ErrCompressFail, err_)
	}
	err_ = w.Close()
	if err_ != nil {
		return nil, errs.New(core.ErrCompressFail, err_)
	}
	return b.Bytes(), nil
}

func DeCompress(compressed []byte) ([]byte, *errs.Error) {
	var result bytes.Buffer
	r, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, errs.New(core.ErrDeCompressFail, err)
	}
	defer r.Close()
	_, err = io.Copy(&result, r)
	if err != nil {
		return nil, errs.New(core.ErrIOReadFail, err)
	}
	return result.Bytes(), nil
}
