package config // package config loads application configuration from environment variables

import (
	"log"     // log is used to report configuration errors and halt execution
	"os"      // os provides access to environment variables
	"strconv" // strconv converts strings to other types
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.  The types reflect how the values are used in
// the application: strings for identifiers and secrets, ints for durations
// and timeouts.
type Config struct {
	Env               string // application environment (e.g. "dev", "prod")
	Port              string // HTTP port to listen on
	DBUser            string // database username
	DBPass            string // database password (optional)
	DBHost            string // database host address
	DBPort            string // database port number
	DBName            string // database name
	JWTSecret         string // secret used to verify JWTs on protected routes
	TicketSecret      string // secret used to sign ticket QR payloads
	ReservationTTLMin int    // reservation hold time-to-live in minutes
	CheckinGraceSec   int    // re-scan grace window at the gate in seconds
	DefaultGateway    string // gateway used when an order does not name one
	FlwSecretKey      string // Flutterwave API secret key
	FlwWebhookHash    string // Flutterwave webhook verification hash
	PaystackSecretKey string // Paystack API secret key
	GatewayTimeoutSec int    // outbound gateway call timeout in seconds
}

// Load reads configuration values from environment variables and returns a
// Config.  Required variables are enforced by must() and missing values
// cause the program to exit with a fatal log message.  Gateway keys are
// optional so a deployment can enable only the gateways it uses; the
// registry rejects the default gateway at startup when its adapter is
// missing.
func Load() Config {
	return Config{
		Env:               must("APP_ENV"),  // environment (dev/test/prod)
		Port:              must("APP_PORT"), // port to bind the HTTP server
		DBUser:            must("DB_USER"),  // database user
		DBPass:            os.Getenv("DB_PASS"),
		DBHost:            must("DB_HOST"),
		DBPort:            must("DB_PORT"),
		DBName:            must("DB_NAME"),
		JWTSecret:         must("JWT_SECRET"),
		TicketSecret:      must("TICKET_SIGNING_SECRET"),
		ReservationTTLMin: mustInt("RESERVATION_TTL_MIN"),
		CheckinGraceSec:   intOr("CHECKIN_GRACE_SEC", 30),
		DefaultGateway:    must("DEFAULT_GATEWAY"),
		FlwSecretKey:      os.Getenv("FLW_SECRET_KEY"),
		FlwWebhookHash:    os.Getenv("FLW_WEBHOOK_HASH"),
		PaystackSecretKey: os.Getenv("PAYSTACK_SECRET_KEY"),
		GatewayTimeoutSec: intOr("GATEWAY_TIMEOUT_SEC", 15),
	}
}

// must retrieves the value of a required environment variable.  If the
// variable is unset or empty, the application logs a fatal error and exits.
func must(key string) string {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		log.Fatalf("missing required env var: %s", key)
	}
	return v
}

// mustInt is like must() but converts the retrieved string into an integer.
// If conversion fails, the application logs a fatal error and exits.
func mustInt(key string) int {
	s := must(key)
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Fatalf("invalid int for %s: %q", key, s)
	}
	return n
}

// intOr reads an optional integer variable, falling back to def when the
// variable is unset or malformed.
func intOr(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
