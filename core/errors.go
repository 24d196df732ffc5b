package core

const (
	ErrBadConfig = -1*iota - 100
	ErrInvalidPath
	ErrIOReadFail
	ErrIOWriteFail
	ErrDbConnFail
	ErrDbReadFail
	ErrDbExecFail
	ErrRunTime
	ErrMarshalFail
	ErrCompressFail
	ErrDeCompressFail
	ErrTimeout
	ErrEOF
	ErrInvalidAgg
	ErrInvalidExpr
	ErrInvalidBars

	ErrOrderNotFound
	ErrDiNotFound
	ErrLogic
	ErrLogin
	ErrInsert
)

var ErrCodeNames = map[int]string{
	ErrBadConfig:      "BadConfig",
	ErrInvalidPath:    "InvalidPath",
	ErrIOReadFail:     "IOReadFail",
	ErrIOWriteFail:    "IOWriteFail",
	ErrDbConnFail:     "DbConnFail",
	ErrDbReadFail:     "DbReadFail",
	ErrDbExecFail:     "DbExecFail",
	ErrRunTime:        "RunTime",
	ErrMarshalFail:    "MarshalFail",
	ErrCompressFail:   "CompressFail",
	ErrDeCompressFail: "DeCompressFail",
	ErrTimeout:        "Timeout",
	ErrEOF:            "EOF",
	ErrInvalidAgg:     "InvalidAgg",
	ErrInvalidExpr:    "InvalidExpr",
	ErrInvalidBars:    "InvalidBars",
	ErrOrderNotFound:  "OrderNotFound",
	ErrDiNotFound:     "DiNotFound",
	ErrLogic:          "LogicError",
	ErrLogin:          "LoginError",
	ErrInsert:         "InsertError",
}

func ErrName(code int) string {
	if name, ok := ErrCodeNames[code]; ok {
		return name
	}
	return "Unknown"
}
