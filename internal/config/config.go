// Package config предоставляет структуры и функцию для парсинга и загрузки конфига
package config

import (
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config общая структура для хранения настроек. Заполняется один раз
// при старте, компоненты не читают переменные окружения напрямую.
type Config struct {
	Env                     string   `yaml:"env"`
	StorageConnectionString string   `yaml:"storage_connection_string"`
	MigrationsPath          string   `yaml:"migrations_path" env-default:"./migrations"`
	DeveloperAllowlist      []string `yaml:"developer_allowlist"`
	RedisConnection         `yaml:"redis_connection"`
	HTTPServer              `yaml:"http_server"`
	JWTToken                `yaml:"jwttoken"`
	RabbitMQ                `yaml:"rabbitmq"`
	SMTP                    `yaml:"smtp"`
	WhatsApp                `yaml:"whatsapp"`
	Razorpay                `yaml:"razorpay"`
	Delivery                `yaml:"delivery"`
}

// HTTPServer структура для настройки сервера
type HTTPServer struct {
	AddressHTTP string        `yaml:"addresshttp"`
	TimeoutHTTP time.Duration `yaml:"timeouthttp"`
	IdleTimeout time.Duration `yaml:"idle_timeout"`
}

// RedisConnection структура для настройки подключения к redis
type RedisConnection struct {
	AddressRedis string        `yaml:"addressredis"`
	Password     string        `yaml:"password"`
	User         string        `yaml:"user"`
	DB           int           `yaml:"db"`
	MaxRetries   int           `yaml:"max_retries"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	TimeoutRedis time.Duration `yaml:"timeoutredis"`
}

// JWTToken структура для работы с jwt-токеном
type JWTToken struct {
	JWTSecretKey string        `yaml:"jwt_secret_key"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

// RabbitMQ структура для настройки подключения к брокеру доставки
type RabbitMQ struct {
	RabbitMQURL        string        `yaml:"url"`
	RabbitMQMaxRetries int           `yaml:"max_retries"`
	RabbitMQRetryDelay time.Duration `yaml:"retry_delay"`
}

// SMTP структура для настройки почтового транспорта
type SMTP struct {
	SMTPHost string `yaml:"host"`
	SMTPPort string `yaml:"port"`
	SMTPUser string `yaml:"user"`
	SMTPPass string `yaml:"password"`
}

// WhatsApp структура для настройки транспорта WhatsApp Cloud API
type WhatsApp struct {
	WhatsAppAccessToken   string `yaml:"access_token"`
	WhatsAppPhoneNumberID string `yaml:"phone_number_id"`
	WhatsAppAPIVersion    string `yaml:"api_version" env-default:"v20.0"`
}

// Razorpay структура для настройки платёжного провайдера
type Razorpay struct {
	RazorpayKeyID     string `yaml:"key_id"`
	RazorpayKeySecret string `yaml:"key_secret"`
	WebhookSecret     string `yaml:"webhook_secret"`
}

// Delivery структура для настройки диспетчера доставки
type Delivery struct {
	SendTimeout time.Duration `yaml:"send_timeout" env-default:"30s"`
	MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
}

// MustLoad функция для загрузки конфига, путь к файлу берётся из CONFIG_PATH
func MustLoad() *Config {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		log.Fatal("CONFIG_PATH is not set")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Fatalf("file: %s - does not exist", configPath)
	}
	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		log.Fatalf("cannot read config: %s", err)
	}
	return &cfg
}
