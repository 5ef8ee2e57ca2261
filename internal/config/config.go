package config

import (
	"log/slog"
	"os"
	"strings"

	"github.com/corray333/backend-labs/storefront/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix lets any config key be overridden from the environment,
// e.g. STOREFRONT_PAYMENT_CURRENCY for payment.currency.
const EnvPrefix = "STOREFRONT"

// MustInit loads .env, then config.yaml from /etc/storefront or the working
// directory, and installs the default logger. A missing .env is tolerated.
func MustInit() {
	if err := godotenv.Load("./.env"); err != nil && !os.IsNotExist(err) {
		panic("failed to load .env file: " + err.Error())
	}

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	for _, dir := range []string{"/etc/storefront", "."} {
		viper.AddConfigPath(dir)
	}

	viper.SetEnvPrefix(EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		panic("failed to read config file: " + err.Error())
	}

	SetupLogger()
	slog.Info("Config loaded", "file", viper.ConfigFileUsed())
}

// SetupLogger replaces the default slog logger with the JSON one.
func SetupLogger() {
	slog.SetDefault(slog.New(logger.NewHandler(nil)))
}
