package config

var (
	Data   Config // last loaded config
	Args   *CmdArgs
	Loaded bool

	DataDir string
)

var (
	// keys whose value in a later file replaces the earlier one instead of merging
	noExtends = map[string]bool{
		"strategies": true,
	}
)

// Config root of the yml config files
type Config struct {
	Name          string                   `yaml:"name" mapstructure:"name" validate:"required"`
	DataDir       string                   `yaml:"data_dir" mapstructure:"data_dir"`
	LogLevel      string                   `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogFile       string                   `yaml:"log_file" mapstructure:"log_file"`
	Broker        string                   `yaml:"broker" mapstructure:"broker"`
	BrokerURL     string                   `yaml:"broker_url" mapstructure:"broker_url" validate:"omitempty,url"`
	Codec         string                   `yaml:"codec" mapstructure:"codec" validate:"omitempty,oneof=bin binz csv"`
	PoolPrefix    string                   `yaml:"pool_prefix" mapstructure:"pool_prefix" validate:"len=4,alphanum"`
	OrderPollMS   int                      `yaml:"order_poll_ms" mapstructure:"order_poll_ms" validate:"gte=1"`
	ReloginMS     int                      `yaml:"relogin_ms" mapstructure:"relogin_ms" validate:"gte=1"`
	LoginEscalate int                      `yaml:"login_escalate" mapstructure:"login_escalate" validate:"gte=1"`
	QueueSize     int                      `yaml:"queue_size" mapstructure:"queue_size" validate:"gte=1"`
	CacheMaxKeys  int                      `yaml:"cache_max_keys" mapstructure:"cache_max_keys" validate:"gte=0"`
	Parallel      int                      `yaml:"parallel" mapstructure:"parallel" validate:"gte=0"`
	Journal       string                   `yaml:"journal" mapstructure:"journal"`
	SnapshotCron  string                   `yaml:"snapshot_cron" mapstructure:"snapshot_cron"`
	Strategies    []string                 `yaml:"strategies" mapstructure:"strategies" validate:"min=1,dive,required"`
	TimeStart     string                   `yaml:"time_start" mapstructure:"time_start"`
	TimeEnd       string                   `yaml:"time_end" mapstructure:"time_end"`
	Codes         []string                 `yaml:"codes" mapstructure:"codes"`
	Tickers       map[string]*TickerConfig `yaml:"tickers" mapstructure:"tickers" validate:"dive"`
	RPCChannels   map[string]*RPCChannel   `yaml:"rpc_channels" mapstructure:"rpc_channels" validate:"dive"`
	TimeRange     *TimeTuple               `yaml:"-" mapstructure:"-"`
}

/*
TickerConfig overrides static metadata of a registered ticker, zero fields keep the
registered value. Sessions uses the "09:00-10:15,21:00-23:00" form. Strategy picks the
strategy traded live for this ticker, the first of Strategies by default.
*/
type TickerConfig struct {
	Strategy   string   `yaml:"strategy" mapstructure:"strategy"`
	TickSize   float64  `yaml:"tick_size" mapstructure:"tick_size" validate:"gte=0"`
	PointValue float64  `yaml:"point_value" mapstructure:"point_value" validate:"gte=0"`
	SlipTicks  *float64 `yaml:"slip_ticks" mapstructure:"slip_ticks"`
	CommFixed  *float64 `yaml:"comm_fixed" mapstructure:"comm_fixed"`
	CommRate   *float64 `yaml:"comm_rate" mapstructure:"comm_rate"`
	Sessions   string   `yaml:"sessions" mapstructure:"sessions"`
}

/*
RPCChannel a notification channel. webhook posts json to URL, telegram sends to ChatID
with the bot Token. RetryDelay is in milliseconds.
*/
type RPCChannel struct {
	Type       string   `yaml:"type" mapstructure:"type" validate:"omitempty,oneof=webhook telegram"`
	URL        string   `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	Token      string   `yaml:"token" mapstructure:"token"`
	ChatID     int64    `yaml:"chat_id" mapstructure:"chat_id"`
	MsgTypes   []string `yaml:"msg_types" mapstructure:"msg_types"`
	Keywords   []string `yaml:"keywords" mapstructure:"keywords"`
	RetryNum   int      `yaml:"retry_num" mapstructure:"retry_num" validate:"gte=0"`
	RetryDelay int      `yaml:"retry_delay" mapstructure:"retry_delay" validate:"gte=0"`
	Disable    bool     `yaml:"disable" mapstructure:"disable"`
}

type TimeTuple struct {
	StartMS int64
	EndMS   int64
}

var defaults = map[string]interface{}{
	"broker":         "paper",
	"codec":          "binz",
	"pool_prefix":    "bf01",
	"order_poll_ms":  10,
	"relogin_ms":     1000,
	"login_escalate": 5,
	"queue_size":     1000,
	"cache_max_keys": 300,
	"snapshot_cron":  "0 5 15 * * *",
}
