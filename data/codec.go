package data

import (
	"bytes"
	"encoding/binary"
	"encoding/csv"
	"math"
	"strconv"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/utils"
)

/*
Codec encodes one day file of ticks or bars. The ticker is implied by the directory, so
records do not carry it.
*/
type Codec interface {
	Name() string
	EncodeTicks(ticks []*core.Tick) ([]byte, *errs.Error)
	DecodeTicks(data []byte) ([]*core.Tick, *errs.Error)
	EncodeBars(bars []core.Bar) ([]byte, *errs.Error)
	DecodeBars(data []byte) ([]core.Bar, *errs.Error)
}

const (
	tickSize = 64
	barSize  = 96
)

/*
BinCodec fixed-width little endian records, zlib compressed when Compress
*/
type BinCodec struct {
	Compress bool
}

func (c *BinCodec) Name() string {
	if c.Compress {
		return "binz"
	}
	return "bin"
}

func putF(dst []byte, v float64) {
	binary.LittleEndian.PutUint64(dst, math.Float64bits(v))
}

func getF(src []byte) float64 {
	return math.Float64frombits(binary.LittleEndian.Uint64(src))
}

func putI(dst []byte, v int64) {
	binary.LittleEndian.PutUint64(dst, uint64(v))
}

func getI(src []byte) int64 {
	return int64(binary.LittleEndian.Uint64(src))
}

func (c *BinCodec) pack(raw []byte) ([]byte, *errs.Error) {
	if !c.Compress {
		return raw, nil
	}
	return utils.Compress(raw)
}

func (c *BinCodec) unpack(data []byte, size int) ([]byte, *errs.Error) {
	raw := data
	if c.Compress {
		var err *errs.Error
		raw, err = utils.DeCompress(data)
		if err != nil {
			return nil, err
		}
	}
	if len(raw)%size != 0 {
		return nil, errs.NewMsg(core.ErrIOReadFail, "%s: payload %d not a multiple of %d", c.Name(), len(raw), size)
	}
	return raw, nil
}

func (c *BinCodec) EncodeTicks(ticks []*core.Tick) ([]byte, *errs.Error) {
	raw := make([]byte, len(ticks)*tickSize)
	for i, t := range ticks {
		d := raw[i*tickSize:]
		putI(d[0:8], t.Time)
		putF(d[8:16], t.Price)
		putF(d[16:24], t.CumVolume)
		putF(d[24:32], t.BidPrice)
		putF(d[32:40], t.AskPrice)
		putF(d[40:48], t.BidSize)
		putF(d[48:56], t.AskSize)
		putI(d[56:64], t.ContractID)
	}
	return c.pack(raw)
}

func (c *BinCodec) DecodeTicks(data []byte) ([]*core.Tick, *errs.Error) {
	raw, err := c.unpack(data, tickSize)
	if err != nil {
		return nil, err
	}
	res := make([]*core.Tick, len(raw)/tickSize)
	for i := range res {
		d := raw[i*tickSize:]
		res[i] = &core.Tick{
			Time:       getI(d[0:8]),
			Price:      getF(d[8:16]),
			CumVolume:  getF(d[16:24]),
			BidPrice:   getF(d[24:32]),
			AskPrice:   getF(d[32:40]),
			BidSize:    getF(d[40:48]),
			AskSize:    getF(d[48:56]),
			ContractID: getI(d[56:64]),
		}
	}
	return res, nil
}

func (c *BinCodec) EncodeBars(bars []core.Bar) ([]byte, *errs.Error) {
	raw := make([]byte, len(bars)*barSize)
	for i, b := range bars {
		d := raw[i*barSize:]
		putI(d[0:8], b.OpenTime)
		putI(d[8:16], b.CloseTime)
		putF(d[16:24], b.Open)
		putF(d[24:32], b.High)
		putF(d[32:40], b.Low)
		putF(d[40:48], b.Close)
		putF(d[48:56], b.Volume)
		putI(d[56:64], b.Info.OpenTime)
		putI(d[64:72], int64(b.Info.SkippedTicks))
		putI(d[72:80], int64(b.Info.TicksInBar))
		putI(d[80:88], b.Info.ContractID)
	}
	return c.pack(raw)
}

func (c *BinCodec) DecodeBars(data []byte) ([]core.Bar, *errs.Error) {
	raw, err := c.unpack(data, barSize)
	if err != nil {
		return nil, err
	}
	res := make([]core.Bar, len(raw)/barSize)
	for i := range res {
		d := raw[i*barSize:]
		res[i] = core.Bar{
			OpenTime:  getI(d[0:8]),
			CloseTime: getI(d[8:16]),
			Open:      getF(d[16:24]),
			High:      getF(d[24:32]),
			Low:       getF(d[32:40]),
			Close:     getF(d[40:48]),
			Volume:    getF(d[48:56]),
			Info: core.KlineInfo{
				OpenTime:     getI(d[56:64]),
				SkippedTicks: int(getI(d[64:72])),
				TicksInBar:   int(getI(d[72:80])),
				ContractID:   getI(d[80:88]),
			},
		}
	}
	return res, nil
}

// CsvCodec plain text rows, for inspection and exchange with other tools
type CsvCodec struct{}

func (c *CsvCodec) Name() string { return "csv" }

func fmtF(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func writeCsv(rows [][]string) ([]byte, *errs.Error) {
	var b bytes.Buffer
	w := csv.NewWriter(&b)
	if err_ := w.WriteAll(rows); err_ != nil {
		return nil, errs.New(core.ErrIOWriteFail, err_)
	}
	return b.Bytes(), nil
}

/*
readCsv rows with exactly cols fields, parsed as numbers
*/
func readCsv(data []byte, cols int) ([][]float64, *errs.Error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = cols
	rows, err_ := r.ReadAll()
	if err_ != nil {
		return nil, errs.New(core.ErrIOReadFail, err_)
	}
	res := make([][]float64, len(rows))
	for i, row := range rows {
		vals := make([]float64, cols)
		for k, text := range row {
			v, err_ := strconv.ParseFloat(text, 64)
			if err_ != nil {
				return nil, errs.NewMsg(core.ErrIOReadFail, "row %d col %d: %v", i, k, err_)
			}
			vals[k] = v
		}
		res[i] = vals
	}
	return res, nil
}

func (c *CsvCodec) EncodeTicks(ticks []*core.Tick) ([]byte, *errs.Error) {
	rows := make([][]string, len(ticks))
	for i, t := range ticks {
		rows[i] = []string{strconv.FormatInt(t.Time, 10), fmtF(t.Price), fmtF(t.CumVolume), fmtF(t.BidPrice),
			fmtF(t.AskPrice), fmtF(t.BidSize), fmtF(t.AskSize), strconv.FormatInt(t.ContractID, 10)}
	}
	return writeCsv(rows)
}

func (c *CsvCodec) DecodeTicks(data []byte) ([]*core.Tick, *errs.Error) {
	rows, err := readCsv(data, 8)
	if err != nil {
		return nil, err
	}
	res := make([]*core.Tick, len(rows))
	for i, v := range rows {
		res[i] = &core.Tick{Time: int64(v[0]), Price: v[1], CumVolume: v[2], BidPrice: v[3], AskPrice: v[4],
			BidSize: v[5], AskSize: v[6], ContractID: int64(v[7])}
	}
	return res, nil
}

func (c *CsvCodec) EncodeBars(bars []core.Bar) ([]byte, *errs.Error) {
	rows := make([][]string, len(bars))
	for i, b := range bars {
		rows[i] = []string{strconv.FormatInt(b.OpenTime, 10), strconv.FormatInt(b.CloseTime, 10), fmtF(b.Open),
			fmtF(b.High), fmtF(b.Low), fmtF(b.Close), fmtF(b.Volume), strconv.FormatInt(b.Info.OpenTime, 10),
			strconv.Itoa(b.Info.SkippedTicks), strconv.Itoa(b.Info.TicksInBar), strconv.FormatInt(b.Info.ContractID, 10)}
	}
	return writeCsv(rows)
}

func (c *CsvCodec) DecodeBars(data []byte) ([]core.Bar, *errs.Error) {
	rows, err := readCsv(data, 11)
	if err != nil {
		return nil, err
	}
	res := make([]core.Bar, len(rows))
	for i, v := range rows {
		res[i] = core.Bar{OpenTime: int64(v[0]), CloseTime: int64(v[1]), Open: v[2], High: v[3], Low: v[4],
			Close: v[5], Volume: v[6], Info: core.KlineInfo{OpenTime: int64(v[7]), SkippedTicks: int(v[8]),
				TicksInBar: int(v[9]), ContractID: int64(v[10])}}
	}
	return res, nil
}

var codecs = map[string]Codec{
	"bin":  &BinCodec{},
	"binz": &BinCodec{Compress: true},
	"csv":  &CsvCodec{},
}

func GetCodec(name string) (Codec, *errs.Error) {
	if c, ok := codecs[name]; ok {
		return c, nil
	}
	return nil, errs.NewMsg(core.ErrBadConfig, "unknown archive codec: %s", name)
}
