package config

import (
	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// Structs

// Config holds all information parsed from
// supplied config file.
type Config struct {
	Greeting string
	Server   Server
	Client   Client
}

// Server describes the configuration of the
// mailbox authority: where it listens, which
// TLS material it presents and how it expects
// clients to authenticate.
type Server struct {
	ListenAddr     string
	PrometheusAddr string
	TLS            TLS
	AuthAdapter    string
	AuthFile       *AuthFile
}

// TLS bundles the locations of the certificate
// and key presented on the public listener.
type TLS struct {
	CertLoc string
	KeyLoc  string
}

// AuthFile configures the file-backed
// authentication adapter.
type AuthFile struct {
	File      string
	Separator string
}

// Client describes how the initiator reaches
// the authority. Username and password are
// usually overridden from the environment,
// see LoadEnv.
type Client struct {
	Host        string
	Port        string
	Username    string
	Password    string
	InsecureTLS bool
}

// Functions

// LoadConfig takes in the path to the main config
// file of lark in TOML syntax and places the values
// from the file in the above detailed structure.
func LoadConfig(configFile string) (*Config, error) {

	conf := new(Config)

	// Parse values from TOML file into struct.
	if _, err := toml.DecodeFile(configFile, conf); err != nil {
		return nil, errors.Wrapf(err, "failed to read in TOML config file at '%s'", configFile)
	}

	// Fall back to sane defaults where the file
	// left optional values unset.
	if conf.Greeting == "" {
		conf.Greeting = "lark ready"
	}

	if conf.Client.Host == "" {
		conf.Client.Host = "127.0.0.1"
	}

	if conf.Client.Port == "" {
		conf.Client.Port = "1143"
	}

	return conf, nil
}
