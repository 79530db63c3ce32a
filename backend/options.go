package backend

import (
	"github.com/mwantia/blockdb/extension/encrypt"
	"github.com/mwantia/blockdb/log"
)

// Options are shared by every backend implementation.
type Options struct {
	Logger *log.Logger
	Cipher *encrypt.Cipher
}

type Option func(*Options) error

func NewOptions(opts ...Option) (*Options, error) {
	options := &Options{
		Logger: log.NewDiscardLogger(),
	}

	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}

	return options, nil
}

// Codec returns the payload codec configured by these options.
func (o *Options) Codec() *Codec {
	return NewCodec(o.Cipher)
}

func WithLogger(logger *log.Logger) Option {
	return func(opts *Options) error {
		opts.Logger = logger
		return nil
	}
}

func WithCipher(cipher *encrypt.Cipher) Option {
	return func(opts *Options) error {
		opts.Cipher = cipher
		return nil
	}
}

// WithSecretKey enables at-rest encryption with a hex encoded 32 byte key.
func WithSecretKey(secret string) Option {
	return func(opts *Options) error {
		cipher, err := encrypt.NewCipher(secret)
		if err != nil {
			return err
		}

		opts.Cipher = cipher
		return nil
	}
}
