package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port string `envconfig:"PORT" default:"8001"`

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"storefront_db"`

	// Courier gateway credentials (business account, not per-request).
	CourierBaseURL  string `envconfig:"COURIER_BASE_URL" default:"https://pre-alpha.ithinklogistics.com/api_v3"`
	CourierToken    string `envconfig:"COURIER_ACCESS_TOKEN"`
	CourierSecret   string `envconfig:"COURIER_SECRET_KEY"`
	CourierPickupID string `envconfig:"COURIER_PICKUP_ID"`

	// Shared secret for the payment gateway callback signature.
	PaymentSecret string `envconfig:"RAZORPAY_KEY_SECRET"`

	SMTPHost string `envconfig:"SMTP_HOST"`
	SMTPPort int    `envconfig:"SMTP_PORT" default:"465"`
	SMTPUser string `envconfig:"SMTP_USER"`
	SMTPPass string `envconfig:"SMTP_PASS"`
	MailFrom string `envconfig:"MAIL_FROM" default:"support@nplusonefashion.com"`

	RabbitMQHost     string `envconfig:"RABBITMQ_HOST" default:"localhost"`
	RabbitMQPort     int    `envconfig:"RABBITMQ_PORT" default:"5672"`
	RabbitMQUser     string `envconfig:"RABBITMQ_USERNAME" default:"guest"`
	RabbitMQPassword string `envconfig:"RABBITMQ_PASSWORD" default:"guest"`
	RabbitMQVHost    string `envconfig:"RABBITMQ_VHOST" default:"/"`
	RabbitMQExchange string `envconfig:"RABBITMQ_EXCHANGE" default:"order.events"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName,
	)
}

func (c *Config) RabbitMQURL() string {
	vhost := c.RabbitMQVHost
	if vhost == "/" {
		vhost = ""
	}
	return fmt.Sprintf("amqp://%s:%s@%s:%d/%s",
		c.RabbitMQUser, c.RabbitMQPassword, c.RabbitMQHost, c.RabbitMQPort, vhost)
}
