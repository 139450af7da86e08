package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config конфигурация процесса. Читается один раз при старте и передаётся
// компонентам явно.
type Config struct {
	Port     string `envconfig:"PORT" default:"8080"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	GinMode  string `envconfig:"GIN_MODE" default:"release"`

	// Nested groups carry full variable names in their tags; envconfig falls
	// back to them when the prefixed key (STORE_STORE_DRIVER, ...) is unset.
	Store Store
	Email Email
	Chat  Chat
	Order Order
	Shop  Shop
}

// Store выбор и параметры хранилища заказов
type Store struct {
	Driver string `envconfig:"STORE_DRIVER" default:"sqlite"` // sqlite | memory | dynamodb
	// Path пустой: файл orders.db во временном каталоге
	Path             string `envconfig:"ORDERS_DB_PATH" default:""`
	TableName        string `envconfig:"ORDER_TABLE_NAME" default:"orders"`
	AWSRegion        string `envconfig:"AWS_REGION" default:"us-east-1"`
	DynamoDBEndpoint string `envconfig:"DYNAMODB_ENDPOINT" default:""` // DynamoDB Local
}

// Email параметры SMTP-канала
type Email struct {
	User     string        `envconfig:"EMAIL_USER"`
	Password string        `envconfig:"EMAIL_PASS"`
	To       string        `envconfig:"EMAIL_TO"`
	Host     string        `envconfig:"EMAIL_HOST" default:"smtp.gmail.com"`
	Port     int           `envconfig:"EMAIL_PORT" default:"465"`
	Timeout  time.Duration `envconfig:"EMAIL_TIMEOUT" default:"15s"`
}

// Missing names the required email variables that are not set.
func (e Email) Missing() []string {
	var out []string
	if e.User == "" {
		out = append(out, "EMAIL_USER")
	}
	if e.Password == "" {
		out = append(out, "EMAIL_PASS")
	}
	if e.To == "" {
		out = append(out, "EMAIL_TO")
	}
	return out
}

// Chat параметры WhatsApp Cloud API
type Chat struct {
	Token         string        `envconfig:"WHATSAPP_TOKEN"`
	PhoneNumberID string        `envconfig:"WHATSAPP_PHONE_NUMBER_ID"`
	To            string        `envconfig:"WHATSAPP_TO"`
	APIURL        string        `envconfig:"WHATSAPP_API_URL" default:"https://graph.facebook.com/v20.0"`
	Timeout       time.Duration `envconfig:"WHATSAPP_TIMEOUT" default:"10s"`
}

// Missing names the required chat variables that are not set.
func (c Chat) Missing() []string {
	var out []string
	if c.Token == "" {
		out = append(out, "WHATSAPP_TOKEN")
	}
	if c.PhoneNumberID == "" {
		out = append(out, "WHATSAPP_PHONE_NUMBER_ID")
	}
	if c.To == "" {
		out = append(out, "WHATSAPP_TO")
	}
	return out
}

// Order политика нормализации
type Order struct {
	// StrictTotal отклоняет заказ, если total не равен сумме qty × price
	StrictTotal bool `envconfig:"ORDER_STRICT_TOTAL" default:"false"`
}

// Shop реквизиты магазина для счёта
type Shop struct {
	Name    string `envconfig:"SHOP_NAME" default:"Your Shop Name"`
	Email   string `envconfig:"SHOP_EMAIL" default:"support@yourshop.com"`
	Website string `envconfig:"SHOP_WEBSITE" default:"www.yourshop.com"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.Email.Timeout <= 0 || cfg.Chat.Timeout <= 0 {
		return nil, fmt.Errorf("delivery timeouts must be positive (EMAIL_TIMEOUT=%s, WHATSAPP_TIMEOUT=%s)", cfg.Email.Timeout, cfg.Chat.Timeout)
	}
	return &cfg, nil
}
