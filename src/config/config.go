package config

import (
	"fmt"
	"os"
	"strconv"
)

func GetDSN() string {
	DATABASE_HOST := os.Getenv("DATABASE_HOST")
	DATABASE_PORT := os.Getenv("DATABASE_PORT")
	DATABASE_SSLMODE := os.Getenv("DATABASE_SSLMODE")
	DATABASE_TIMEZONE := os.Getenv("DATABASE_TIMEZONE")
	DATABASE_USER := os.Getenv("DATABASE_USER")
	DATABASE_PASSWORD := os.Getenv("DATABASE_PASSWORD")
	DATABASE_NAME := os.Getenv("DATABASE_NAME")
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s", DATABASE_HOST, DATABASE_USER, DATABASE_PASSWORD, DATABASE_NAME, DATABASE_PORT, DATABASE_SSLMODE, DATABASE_TIMEZONE)
	return dsn
}

// CommissionRate is the platform's share of every booking total. Defaults to
// 10% when COMMISSION_RATE is unset or unparseable; a Settings row may
// override it at runtime (see utils.GetCommissionRate).
func CommissionRate() float64 {
	raw := os.Getenv("COMMISSION_RATE")
	rate, err := strconv.ParseFloat(raw, 64)
	if err != nil || rate < 0 || rate >= 1 {
		return DEFAULT_COMMISSION_RATE
	}
	return rate
}

const DEFAULT_COMMISSION_RATE = 0.10

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

const COMMISSION_RATE_SETTING = "payments.commission_rate"
