package config

import (
	"errors"
	"fmt"

	"grocery-helpers/internal/types"

	"dario.cat/mergo"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Configuration keys. Each one is also read from GH_<KEY> and, for the flags
// registered by RegisterFlags, from --<key>.
const (
	PostalCodeKey    = "postal_code"
	ProfileDirKey    = "profile_dir"
	OutputDataDirKey = "output_data_dir"
	UserKey          = "user"
	PasswordKey      = "password"
	HeadlessKey      = "headless"
	ChromePathKey    = "chrome_path"
	FlyerCacheKey    = "flyer_cache"
	FlyerBaseURLKey  = "flyer_base_url"
	PollTimeoutKey   = "poll_timeout"
	SettleDelayKey   = "settle_delay"
	MaxSlotPagesKey  = "max_slot_pages"
	RequestDelayKey  = "request_delay"
	MaxRetriesKey    = "max_retries"
	TimeoutKey       = "timeout"
)

// RegisterFlags adds the flags shared by the command line tools
func RegisterFlags(flags *pflag.FlagSet) {
	flags.String(PostalCodeKey, "", "Postal code used to find stores and flyers (env GH_POSTAL_CODE)")
	flags.String(ProfileDirKey, "", "Browser profile directory (env GH_PROFILE_DIR)")
	flags.String(OutputDataDirKey, "", "Directory for downloaded data (env GH_OUTPUT_DATA_DIR, default \".\")")
	flags.Bool("verbose", false, "Enable verbose logging")
}

// Load builds the configuration from flags, GH_* environment variables, an
// optional grocery-helpers.yaml in the working directory and the defaults,
// in that order of precedence. A .env file is loaded into the environment first.
func Load(flags *pflag.FlagSet) (*types.Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigName("grocery-helpers")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("GH")
	v.AutomaticEnv()

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("failed to bind flags: %w", err)
		}
	}

	config := &types.Config{
		PostalCode:     v.GetString(PostalCodeKey),
		ProfileDir:     v.GetString(ProfileDirKey),
		DataDir:        v.GetString(OutputDataDirKey),
		User:           v.GetString(UserKey),
		Password:       v.GetString(PasswordKey),
		ChromePath:     v.GetString(ChromePathKey),
		FlyerCachePath: v.GetString(FlyerCacheKey),
		FlyerBaseURL:   v.GetString(FlyerBaseURLKey),
		PollTimeout:    v.GetDuration(PollTimeoutKey),
		SettleDelay:    v.GetDuration(SettleDelayKey),
		MaxSlotPages:   v.GetInt(MaxSlotPagesKey),
		RequestDelay:   v.GetDuration(RequestDelayKey),
		MaxRetries:     v.GetInt(MaxRetriesKey),
		Timeout:        v.GetDuration(TimeoutKey),
	}

	defaults := types.DefaultConfig()
	if err := mergo.Merge(config, defaults); err != nil {
		return nil, fmt.Errorf("failed to apply defaults: %w", err)
	}

	// false is a zero value, so mergo cannot tell "unset" from "disabled"
	config.Headless = defaults.Headless
	if v.IsSet(HeadlessKey) {
		config.Headless = v.GetBool(HeadlessKey)
	}

	return config, nil
}
