package events

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

type RabbitMQConfig struct {
	URL        string
	Exchange   string
	RetryCount int
	RetryDelay time.Duration
}

type RabbitMQClient struct {
	config     RabbitMQConfig
	connection *amqp.Connection
	channel    *amqp.Channel
	mu         sync.RWMutex
	isClosing  bool
}

func NewRabbitMQClient(config RabbitMQConfig) *RabbitMQClient {
	if config.RetryCount == 0 {
		config.RetryCount = 3
	}
	if config.RetryDelay == 0 {
		config.RetryDelay = 5 * time.Second
	}
	return &RabbitMQClient{config: config}
}

func (r *RabbitMQClient) Connect() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	for i := 0; i < r.config.RetryCount; i++ {
		r.connection, err = amqp.Dial(r.config.URL)
		if err != nil {
			log.Printf("RabbitMQ connection error (attempt %d/%d): %v", i+1, r.config.RetryCount, err)
			if i < r.config.RetryCount-1 {
				time.Sleep(r.config.RetryDelay)
				continue
			}
			return fmt.Errorf("failed to connect to RabbitMQ: %v", err)
		}

		r.channel, err = r.connection.Channel()
		if err != nil {
			r.connection.Close()
			return fmt.Errorf("failed to open RabbitMQ channel: %v", err)
		}

		err = r.channel.ExchangeDeclare(
			r.config.Exchange, // name
			"topic",           // type
			true,              // durable
			false,             // auto-deleted
			false,             // internal
			false,             // no-wait
			nil,               // arguments
		)
		if err != nil {
			r.channel.Close()
			r.connection.Close()
			return fmt.Errorf("failed to declare exchange: %v", err)
		}

		log.Printf("Connected to RabbitMQ, exchange: %s", r.config.Exchange)
		return nil
	}

	return err
}

func (r *RabbitMQClient) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

func (r *RabbitMQClient) IsConnected() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connection != nil && !r.connection.IsClosed()
}

func (r *RabbitMQClient) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.isClosing {
		return nil
	}
	r.isClosing = true

	var closeErr error
	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			closeErr = fmt.Errorf("channel close error: %v", err)
		}
	}
	if r.connection != nil {
		if err := r.connection.Close(); err != nil {
			if closeErr != nil {
				closeErr = fmt.Errorf("%v; connection close error: %v", closeErr, err)
			} else {
				closeErr = fmt.Errorf("connection close error: %v", err)
			}
		}
	}
	return closeErr
}
