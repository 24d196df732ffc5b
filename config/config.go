package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/banbox/banexg/errs"
	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/btime"
	"github.com/banbox/banfut/core"
	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

var val = validator.New(validator.WithRequiredStructEnabled())

func GetDataDir() string {
	if DataDir == "" {
		DataDir = getEnvPath("BanDataDir")
	}
	return DataDir
}

func getEnvPath(key string) string {
	text := strings.TrimSpace(os.Getenv(key))
	if text == "" {
		return ""
	}
	absPath, err := filepath.Abs(text)
	if err != nil {
		return text
	}
	return absPath
}

func LoadConfig(args *CmdArgs) (*Config, *errs.Error) {
	cfg, err := GetConfig(args, true)
	if err != nil {
		return nil, err
	}
	if err = cfg.ApplyTickers(); err != nil {
		return nil, err
	}
	Data = *cfg
	Args = args
	Loaded = true
	return cfg, nil
}

/*
GetConfig reads config.yml and config.local.yml from the data dir (unless NoDefault),
then the files in args.Configs; later files override earlier keys. Args override the
merged result.
*/
func GetConfig(args *CmdArgs, showLog bool) (*Config, *errs.Error) {
	args.Init()
	if args.DataDir != "" {
		DataDir = args.DataDir
	}
	var paths []string
	if !args.NoDefault {
		dataDir := GetDataDir()
		if dataDir == "" {
			return nil, errs.NewMsg(core.ErrBadConfig, "-datadir or env `BanDataDir` is required")
		}
		for _, name := range []string{"config.yml", "config.local.yml"} {
			path := filepath.Join(dataDir, name)
			if _, err := os.Stat(path); err == nil {
				paths = append(paths, path)
			}
		}
	}
	paths = append(paths, args.Configs...)
	res, err := ParseConfigs(paths, showLog)
	if err != nil {
		return nil, err
	}
	if err_ := res.Apply(args); err_ != nil {
		return nil, errs.New(core.ErrBadConfig, err_)
	}
	if err = res.Validate(); err != nil {
		return nil, err
	}
	return res, nil
}

/*
deepMerge copies src into dst, nested maps are merged key by key
*/
func deepMerge(dst, src map[string]interface{}) {
	for k, v := range src {
		if sub, ok := v.(map[string]interface{}); ok && !noExtends[k] {
			if old, ok := dst[k].(map[string]interface{}); ok {
				deepMerge(old, sub)
				continue
			}
		}
		dst[k] = v
	}
}

func ParseConfigs(paths []string, showLog bool) (*Config, *errs.Error) {
	merged := make(map[string]interface{})
	deepMerge(merged, defaults)
	for _, path := range paths {
		if showLog {
			log.Info("Using " + path)
		}
		fileData, err := os.ReadFile(path)
		if err != nil {
			return nil, errs.NewFull(core.ErrIOReadFail, err, "Read %s Fail", path)
		}
		var unpak map[string]interface{}
		err = yaml.Unmarshal(fileData, &unpak)
		if err != nil {
			return nil, errs.NewFull(errs.CodeUnmarshalFail, err, "Unmarshal %s Fail", path)
		}
		deepMerge(merged, unpak)
	}
	return decode(merged)
}

func ParseYmlConfig(fileData []byte, path string) (*Config, *errs.Error) {
	var unpak map[string]interface{}
	err := yaml.Unmarshal(fileData, &unpak)
	if err != nil {
		return nil, errs.NewFull(errs.CodeUnmarshalFail, err, "Unmarshal %s Fail", path)
	}
	merged := make(map[string]interface{})
	deepMerge(merged, defaults)
	deepMerge(merged, unpak)
	return decode(merged)
}

func decode(merged map[string]interface{}) (*Config, *errs.Error) {
	var res Config
	err := mapstructure.Decode(merged, &res)
	if err != nil {
		return nil, errs.NewFull(errs.CodeUnmarshalFail, err, "decode Config Fail")
	}
	return &res, nil
}

func (c *Config) Apply(args *CmdArgs) error {
	if args.DataDir != "" {
		c.DataDir = args.DataDir
	}
	if args.LogLevel != "" {
		c.LogLevel = args.LogLevel
	}
	if args.Logfile != "" {
		c.LogFile = args.Logfile
	}
	if len(args.Strategies) > 0 {
		c.Strategies = args.Strategies
	}
	if len(args.Tickers) > 0 {
		c.Codes = make([]string, 0, len(args.Tickers))
		for _, code := range args.Tickers {
			c.Codes = append(c.Codes, string(code))
		}
	}
	if args.Parallel > 0 {
		c.Parallel = args.Parallel
	}
	if args.Broker != "" {
		c.Broker = args.Broker
	}
	if args.TimeStart != "" {
		c.TimeStart = args.TimeStart
		c.TimeEnd = args.TimeEnd
	}
	var start, stop int64
	var err error
	if args.TimeRange != "" {
		start, stop, err = ParseTimeRange(args.TimeRange)
		if err != nil {
			return err
		}
	} else if c.TimeStart != "" {
		start, err = btime.ParseTimeMS(c.TimeStart)
		if err != nil {
			return err
		}
		if c.TimeEnd != "" {
			stop, err = btime.ParseTimeMS(c.TimeEnd)
			if err != nil {
				return err
			}
		}
	}
	if stop > 0 && stop <= start {
		return fmt.Errorf("time range end must be after start: %s - %s", c.TimeStart, c.TimeEnd)
	}
	c.TimeRange = &TimeTuple{StartMS: start, EndMS: stop}
	return nil
}

func (c *Config) Validate() *errs.Error {
	err := val.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		items := make([]string, 0, len(verrs))
		for _, e := range verrs {
			items = append(items, fmt.Sprintf("%s(%s=%v)", e.Namespace(), e.Tag(), e.Value()))
		}
		return errs.NewMsg(core.ErrBadConfig, "invalid config: %s", strings.Join(items, ", "))
	}
	return errs.New(core.ErrBadConfig, err)
}

/*
ApplyTickers registers the metadata overrides of Tickers. Unknown tickers are accepted
only with tick_size, point_value and sessions set.
*/
func (c *Config) ApplyTickers() *errs.Error {
	for code, tc := range c.Tickers {
		if tc == nil {
			continue
		}
		var info core.TickerInfo
		if old, err := core.GetTicker(core.Ticker(code)); err == nil {
			info = *old
		} else {
			info.Code = core.Ticker(code)
			info.SlipTicks = 1
		}
		if tc.TickSize > 0 {
			info.TickSize = tc.TickSize
		}
		if tc.PointValue > 0 {
			info.PointValue = tc.PointValue
		}
		if tc.SlipTicks != nil {
			info.SlipTicks = *tc.SlipTicks
		}
		if tc.CommFixed != nil {
			info.Commission = core.Commission{Kind: core.CommFixed, Val: *tc.CommFixed}
		} else if tc.CommRate != nil {
			info.Commission = core.Commission{Kind: core.CommRate, Val: *tc.CommRate}
		}
		if tc.Sessions != "" {
			layout, err := btime.ParseLayout(tc.Sessions)
			if err != nil {
				return errs.NewFull(core.ErrBadConfig, err, "sessions of %s", code)
			}
			info.Sessions = layout
		}
		if info.TickSize <= 0 || info.PointValue <= 0 || len(info.Sessions) == 0 {
			return errs.NewMsg(core.ErrBadConfig, "ticker %s needs tick_size, point_value and sessions", code)
		}
		core.RegTicker(&info)
		log.Debug("ticker overridden", zap.String("ticker", code))
	}
	return nil
}

func (c *Config) DumpYaml() ([]byte, *errs.Error) {
	data, err := core.MarshalYaml(c)
	if err != nil {
		return nil, errs.New(core.ErrMarshalFail, err)
	}
	return data, nil
}

func ParseTimeRange(timeRange string) (int64, int64, error) {
	parts := strings.Split(timeRange, "-")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time range format: %s", timeRange)
	}
	startMS, err := btime.ParseTimeMS(parts[0])
	if err != nil {
		return 0, 0, err
	}
	stopMS, err := btime.ParseTimeMS(parts[1])
	return startMS, stopMS, err
}

// StrategyOf name of the strategy traded live for code
func (c *Config) StrategyOf(code string) string {
	if tc, ok := c.Tickers[code]; ok && tc != nil && tc.Strategy != "" {
		return tc.Strategy
	}
	if len(c.Strategies) > 0 {
		return c.Strategies[0]
	}
	return ""
}

func (c *Config) JournalPath() string {
	if c.Journal != "" {
		return c.Journal
	}
	return filepath.Join(c.DataDir, "journal.db")
}
