package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alejandrodnm/automerger/internal/domain"
	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Config es la configuración completa del merger.
type Config struct {
	Wallet    WalletConfig    `yaml:"wallet"`
	Detector  DetectorConfig  `yaml:"detector"`
	Relay     RelayConfig     `yaml:"relay"`
	Contracts ContractsConfig `yaml:"contracts"`
	API       APIConfig       `yaml:"api"`
	Dedup     DedupConfig     `yaml:"dedup"`
	Storage   StorageConfig   `yaml:"storage"`
	Log       LogConfig       `yaml:"log"`

	// Secrets solo se leen del entorno, nunca del YAML.
	Secrets Secrets `yaml:"-"`
}

// WalletConfig identifica la proxy wallet y cómo obtener su clave.
type WalletConfig struct {
	ProxyWallet string `yaml:"proxy_wallet"`
	KeyFile     string `yaml:"key_file"` // JSON cifrado con -encrypt-key
}

// DetectorConfig controla el loop de detección.
type DetectorConfig struct {
	IntervalSeconds      int    `yaml:"interval_seconds"`
	SnapshotDelaySeconds int    `yaml:"snapshot_delay_seconds"`
	CooldownSeconds      int    `yaml:"cooldown_seconds"`
	SubmitSpacingSeconds int    `yaml:"submit_spacing_seconds"`
	MaxBackoffSeconds    int    `yaml:"max_backoff_seconds"`
	MinSize              string `yaml:"min_size"` // decimal, en shares
	PageLimit            int    `yaml:"page_limit"`
	PairMerges           bool   `yaml:"pair_merges"`
}

// RelayConfig controla cómo se envían las operaciones.
type RelayConfig struct {
	Mode                 string `yaml:"mode"`       // relay | onchain
	VMode                string `yaml:"v_mode"`     // keep | 01 | 27 | bump4 | force31
	NonceType            string `yaml:"nonce_type"` // SAFE | PROXY
	ProxyGasLimit        uint64 `yaml:"proxy_gas_limit"`
	SubmitTimeoutSeconds int    `yaml:"submit_timeout_seconds"`
	RefreshMinutes       int    `yaml:"refresh_minutes"`
	RelayAccount         string `yaml:"relay_account"` // vacío = EOA del firmante
	ProxyFactory         string `yaml:"proxy_factory"`
	RelayHub             string `yaml:"relay_hub"`
}

// ContractsConfig sobreescribe las direcciones de go-order-utils.
type ContractsConfig struct {
	Collateral        string `yaml:"collateral"`
	ConditionalTokens string `yaml:"conditional_tokens"`
	ConvertTarget     string `yaml:"convert_target"`
}

// APIConfig contiene los base URLs.
type APIConfig struct {
	DataBase    string `yaml:"data_base"`
	GammaBase   string `yaml:"gamma_base"`
	RelayerBase string `yaml:"relayer_base"`
	LoginURL    string `yaml:"login_url"`
	RPCURL      string `yaml:"rpc_url"`
}

// DedupConfig elige el store de cooldown.
type DedupConfig struct {
	Backend   string `yaml:"backend"` // memory | redis
	RedisAddr string `yaml:"redis_addr"`
	RedisDB   int    `yaml:"redis_db"`
	KeyPrefix string `yaml:"key_prefix"`
}

// StorageConfig controla dónde se persiste el journal.
type StorageConfig struct {
	DSN      string `yaml:"dsn"` // ruta al archivo SQLite, o ":memory:"
	Disabled bool   `yaml:"disabled"`
}

// LogConfig controla el formato y nivel de logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Secrets agrupa los valores sensibles del entorno.
type Secrets struct {
	PrivateKey        string // PRIVATE_KEY
	KeyPassword       string // KEY_PASSWORD
	RelayBearerToken  string // RELAY_BEARER_TOKEN
	PolymarketSession string // POLYMARKET_SESSION
	RedisPassword     string // REDIS_PASSWORD
}

// Load carga la configuración desde el archivo YAML y el archivo .env si existe.
// Las variables de entorno sobreescriben los valores del YAML.
func Load(path string) (*Config, error) {
	// Cargar .env si existe (silencia error si no hay archivo)
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w: read %q: %v", domain.ErrConfig, path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config.Load: %w: parse YAML: %v", domain.ErrConfig, err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	return &cfg, nil
}

// Interval devuelve el intervalo entre ciclos.
func (c *Config) Interval() time.Duration {
	return seconds(c.Detector.IntervalSeconds)
}

// SnapshotDelay devuelve la espera entre los dos snapshots.
func (c *Config) SnapshotDelay() time.Duration {
	return seconds(c.Detector.SnapshotDelaySeconds)
}

// Cooldown devuelve la ventana de dedup.
func (c *Config) Cooldown() time.Duration {
	return seconds(c.Detector.CooldownSeconds)
}

// SubmitSpacing devuelve la pausa tras cada envío.
func (c *Config) SubmitSpacing() time.Duration {
	return seconds(c.Detector.SubmitSpacingSeconds)
}

// MaxBackoff devuelve el techo de espera tras ciclos fallidos.
func (c *Config) MaxBackoff() time.Duration {
	return seconds(c.Detector.MaxBackoffSeconds)
}

// SubmitTimeout devuelve el timeout de /submit.
func (c *Config) SubmitTimeout() time.Duration {
	return seconds(c.Relay.SubmitTimeoutSeconds)
}

// RefreshInterval devuelve cada cuánto se renueva la sesión del relayer.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.Relay.RefreshMinutes) * time.Minute
}

// MinSize devuelve el tamaño mínimo como decimal. Validate garantiza que parsea.
func (c *Config) MinSize() decimal.Decimal {
	d, err := decimal.NewFromString(c.Detector.MinSize)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// Validate comprueba los valores que harían fallar el arranque.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if !common.IsHexAddress(c.Wallet.ProxyWallet) {
		add("wallet.proxy_wallet %q is not an address", c.Wallet.ProxyWallet)
	}
	for field, v := range map[string]string{
		"relay.relay_account":          c.Relay.RelayAccount,
		"relay.proxy_factory":          c.Relay.ProxyFactory,
		"relay.relay_hub":              c.Relay.RelayHub,
		"contracts.collateral":         c.Contracts.Collateral,
		"contracts.conditional_tokens": c.Contracts.ConditionalTokens,
		"contracts.convert_target":     c.Contracts.ConvertTarget,
	} {
		if v != "" && !common.IsHexAddress(v) {
			add("%s %q is not an address", field, v)
		}
	}

	if d, err := decimal.NewFromString(c.Detector.MinSize); err != nil || d.IsNegative() {
		add("detector.min_size %q must be a non-negative decimal", c.Detector.MinSize)
	}
	if c.Detector.CooldownSeconds < 0 || c.Detector.SnapshotDelaySeconds < 0 || c.Detector.SubmitSpacingSeconds < 0 {
		add("detector delays must not be negative")
	}

	switch c.Relay.Mode {
	case "relay":
		if c.Secrets.RelayBearerToken == "" && c.Secrets.PolymarketSession == "" {
			add("relay mode needs RELAY_BEARER_TOKEN or POLYMARKET_SESSION")
		}
	case "onchain":
		if c.API.RPCURL == "" {
			add("onchain mode needs api.rpc_url or RPC_URL")
		}
	default:
		add("relay.mode %q must be relay or onchain", c.Relay.Mode)
	}
	switch c.Relay.VMode {
	case "keep", "01", "27", "bump4", "force31":
	default:
		add("relay.v_mode %q is not one of keep|01|27|bump4|force31", c.Relay.VMode)
	}
	switch c.Relay.NonceType {
	case "SAFE", "PROXY":
	default:
		add("relay.nonce_type %q must be SAFE or PROXY", c.Relay.NonceType)
	}

	switch c.Dedup.Backend {
	case "memory":
	case "redis":
		if c.Dedup.RedisAddr == "" {
			add("dedup.backend redis needs dedup.redis_addr or REDIS_ADDR")
		}
	default:
		add("dedup.backend %q must be memory or redis", c.Dedup.Backend)
	}

	if c.Secrets.PrivateKey == "" && c.Wallet.KeyFile == "" {
		add("no key material: set PRIVATE_KEY or wallet.key_file")
	}
	if c.Secrets.PrivateKey == "" && c.Wallet.KeyFile != "" && c.Secrets.KeyPassword == "" {
		add("wallet.key_file needs KEY_PASSWORD")
	}

	if len(problems) > 0 {
		return fmt.Errorf("config.Validate: %w: %s", domain.ErrConfig, strings.Join(problems, "; "))
	}
	return nil
}

// applyEnvOverrides sobreescribe valores con variables de entorno si están presentes.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROXY_WALLET"); v != "" {
		cfg.Wallet.ProxyWallet = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Dedup.RedisAddr = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Dedup.RedisDB = n
		}
	}
	if v := os.Getenv("RPC_URL"); v != "" {
		cfg.API.RPCURL = v
	}

	cfg.Secrets = Secrets{
		PrivateKey:        os.Getenv("PRIVATE_KEY"),
		KeyPassword:       os.Getenv("KEY_PASSWORD"),
		RelayBearerToken:  os.Getenv("RELAY_BEARER_TOKEN"),
		PolymarketSession: os.Getenv("POLYMARKET_SESSION"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
	}
}

// setDefaults asegura que los valores requeridos tengan valores sensatos.
func setDefaults(cfg *Config) {
	d := &cfg.Detector
	if d.IntervalSeconds <= 0 {
		d.IntervalSeconds = 5
	}
	if d.SnapshotDelaySeconds == 0 {
		d.SnapshotDelaySeconds = 10
	}
	if d.CooldownSeconds == 0 {
		d.CooldownSeconds = 3
	}
	if d.SubmitSpacingSeconds == 0 {
		d.SubmitSpacingSeconds = 2
	}
	if d.MaxBackoffSeconds <= 0 {
		d.MaxBackoffSeconds = 300
	}
	if d.MinSize == "" {
		d.MinSize = "0.1"
	}
	if d.PageLimit <= 0 {
		d.PageLimit = 500
	}

	r := &cfg.Relay
	if r.Mode == "" {
		r.Mode = "relay"
	}
	if r.VMode == "" {
		r.VMode = "bump4"
	}
	if r.NonceType == "" {
		r.NonceType = "SAFE"
	}
	r.NonceType = strings.ToUpper(r.NonceType)
	if r.ProxyGasLimit == 0 {
		r.ProxyGasLimit = 6237523
	}
	if r.SubmitTimeoutSeconds <= 0 {
		r.SubmitTimeoutSeconds = 10
	}
	if r.RefreshMinutes <= 0 {
		r.RefreshMinutes = 20
	}

	if cfg.API.DataBase == "" {
		cfg.API.DataBase = "https://data-api.polymarket.com"
	}
	if cfg.API.GammaBase == "" {
		cfg.API.GammaBase = "https://gamma-api.polymarket.com"
	}
	if cfg.API.RelayerBase == "" {
		cfg.API.RelayerBase = "https://relayer-v2.polymarket.com"
	}
	if cfg.API.LoginURL == "" {
		cfg.API.LoginURL = cfg.API.GammaBase + "/login"
	}

	if cfg.Dedup.Backend == "" {
		cfg.Dedup.Backend = "memory"
	}
	if cfg.Storage.DSN == "" {
		cfg.Storage.DSN = "automerger.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}
