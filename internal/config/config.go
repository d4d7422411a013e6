package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port          string
	SlackToken    string
	SigningSecret string
	CardDataDir   string
	ShuffleSeed   int64 // 0 = seed from the clock
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "8080")
	c.SlackToken = os.Getenv("SLACK_BOT_TOKEN")
	c.SigningSecret = os.Getenv("SLACK_SIGNING_SECRET")
	c.CardDataDir = getenv("CARD_DATA_DIR", "./data")
	c.ShuffleSeed, _ = strconv.ParseInt(os.Getenv("SHUFFLE_SEED"), 10, 64)
	return c
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
