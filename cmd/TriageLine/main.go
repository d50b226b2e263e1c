package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/GraminSeva/TriageLine/internal/aiengine"
	"github.com/GraminSeva/TriageLine/internal/api"
	"github.com/GraminSeva/TriageLine/internal/genai"
	"github.com/GraminSeva/TriageLine/internal/lockfile"
	"github.com/GraminSeva/TriageLine/internal/messaging"
	"github.com/GraminSeva/TriageLine/internal/rules"
	"github.com/GraminSeva/TriageLine/internal/store"
	"github.com/GraminSeva/TriageLine/internal/util"
	"github.com/joho/godotenv"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for TriageLine state data
	DefaultStateDir = "/var/lib/triageline"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "triageline.db"
)

func main() {
	// Initialize structured logger
	initializeLogger()

	// Load environment configuration
	config := loadEnvironmentConfig()

	// Parse command line flags
	flags := parseCommandLineFlags(config)

	// Ensure required directories exist
	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	// Hold the state directory for the lifetime of the process
	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to lock state directory", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	// Build module options
	storeOpts := buildStoreOptions(flags)
	aiOpts := buildAIEngineOptions(flags)
	genaiOpts := buildGenAIOptions(flags)
	msgOpts := buildMessagingOptions(flags)
	apiOpts := buildAPIOptions(flags, config)

	// Start the service
	slog.Info("Bootstrapping TriageLine with configured modules")
	slog.Debug("Module options counts", "store", len(storeOpts), "aiengine", len(aiOpts), "genai", len(genaiOpts), "messaging", len(msgOpts), "api", len(apiOpts))
	slog.Debug("Final configuration", "state_dir", *flags.stateDir, "dsn_set", *flags.dbDSN != "", "api_addr", *flags.apiAddr)
	if err := api.Run(storeOpts, aiOpts, genaiOpts, msgOpts, apiOpts); err != nil {
		slog.Error("TriageLine failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("TriageLine exited successfully")
}

// Config holds environment configuration
type Config struct {
	DatabaseDSN  string
	StateDir     string
	APIAddr      string
	AIEngineURL  string
	OpenAIKey    string
	OpenAIModel  string
	TwilioSID    string
	TwilioToken  string
	TwilioFrom   string
	ReminderCron string
	Rules        rules.Config
}

// Flags holds command line flag values
type Flags struct {
	stateDir     *string
	dbDSN        *string
	apiAddr      *string
	aiEngineURL  *string
	openaiKey    *string
	openaiModel  *string
	twilioSID    *string
	twilioToken  *string
	twilioFrom   *string
	reminderCron *string
}

// initializeLogger sets up structured logging; TRIAGELINE_DEBUG lowers
// the level to debug.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("TRIAGELINE_DEBUG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	defaults := rules.DefaultConfig()
	config := Config{
		DatabaseDSN:  os.Getenv("DATABASE_URL"),
		StateDir:     os.Getenv("TRIAGELINE_STATE_DIR"),
		APIAddr:      os.Getenv("API_ADDR"),
		AIEngineURL:  os.Getenv("AI_ENGINE_URL"),
		OpenAIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:  os.Getenv("OPENAI_MODEL"),
		TwilioSID:    os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioFrom:   os.Getenv("TWILIO_FROM_NUMBER"),
		ReminderCron: os.Getenv("REMINDER_SCHEDULE"),
		Rules: rules.Config{
			FeverDurationDays:   util.ParseIntEnv("TRIAGE_FEVER_DURATION_DAYS", defaults.FeverDurationDays),
			SelfLimitingMaxDays: util.ParseIntEnv("TRIAGE_SELF_LIMITING_MAX_DAYS", defaults.SelfLimitingMaxDays),
		},
	}

	// Set default state directory if not specified
	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No TRIAGELINE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	} else {
		slog.Debug("TRIAGELINE_STATE_DIR found in environment", "state_dir", config.StateDir)
	}

	// If no database URL is provided, default to SQLite in the state directory
	if config.DatabaseDSN == "" {
		config.DatabaseDSN = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseDSN)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseDSN != "",
		"TRIAGELINE_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"AI_ENGINE_URL_SET", config.AIEngineURL != "",
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"TWILIO_CONFIGURED", config.TwilioSID != "" && config.TwilioToken != "" && config.TwilioFrom != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:     flag.String("state-dir", config.StateDir, "state directory for TriageLine data (overrides $TRIAGELINE_STATE_DIR)"),
		dbDSN:        flag.String("db-dsn", config.DatabaseDSN, "database DSN for the session store (overrides $DATABASE_URL)"),
		apiAddr:      flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		aiEngineURL:  flag.String("ai-engine-url", config.AIEngineURL, "AI engine base URL (overrides $AI_ENGINE_URL)"),
		openaiKey:    flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key for general answers (overrides $OPENAI_API_KEY)"),
		openaiModel:  flag.String("openai-model", config.OpenAIModel, "OpenAI chat model (overrides $OPENAI_MODEL)"),
		twilioSID:    flag.String("twilio-account-sid", config.TwilioSID, "Twilio account SID for the SMS channel (overrides $TWILIO_ACCOUNT_SID)"),
		twilioToken:  flag.String("twilio-auth-token", config.TwilioToken, "Twilio auth token (overrides $TWILIO_AUTH_TOKEN)"),
		twilioFrom:   flag.String("twilio-from-number", config.TwilioFrom, "Twilio sender number (overrides $TWILIO_FROM_NUMBER)"),
		reminderCron: flag.String("reminder-cron", config.ReminderCron, "cron schedule for appointment reminders (overrides $REMINDER_SCHEDULE)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"aiEngineURL_set", *flags.aiEngineURL != "",
		"openaiKeySet", *flags.openaiKey != "",
		"twilioConfigured", *flags.twilioSID != "" && *flags.twilioToken != "" && *flags.twilioFrom != "")

	// Update database DSN if not explicitly set but state directory is provided
	if *flags.dbDSN == config.DatabaseDSN && config.DatabaseDSN == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "dsn_updated", true, "old_state_dir", config.StateDir, "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	// Ensure state directory exists if we're using a file-based DSN
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		slog.Debug("Creating state directory for file-based database", "state_dir", stateDir)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
		slog.Debug("State directory created successfully", "state_dir", stateDir)
	}
	return nil
}

// buildStoreOptions constructs store configuration options
func buildStoreOptions(flags Flags) []store.Option {
	var storeOpts []store.Option
	if *flags.dbDSN != "" {
		// Check if it's a PostgreSQL DSN using the shared detection function
		if store.DetectDSNType(*flags.dbDSN) == "postgres" {
			slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store", "dsn_type", "postgresql", "dsn_set", true)
			storeOpts = append(storeOpts, store.WithPostgresDSN(*flags.dbDSN))
		} else {
			// Assume SQLite for file paths
			slog.Debug("Detected SQLite DSN, configuring SQLite store", "dsn_type", "sqlite", "db_path", *flags.dbDSN)
			storeOpts = append(storeOpts, store.WithSQLiteDSN(*flags.dbDSN))
		}
	} else {
		slog.Debug("No database DSN provided, will use in-memory store")
	}
	return storeOpts
}

// buildAIEngineOptions constructs AI engine client options
func buildAIEngineOptions(flags Flags) []aiengine.Option {
	var aiOpts []aiengine.Option
	if *flags.aiEngineURL != "" {
		aiOpts = append(aiOpts, aiengine.WithBaseURL(*flags.aiEngineURL))
	}
	return aiOpts
}

// buildGenAIOptions constructs GenAI configuration options
func buildGenAIOptions(flags Flags) []genai.Option {
	var genaiOpts []genai.Option
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	return genaiOpts
}

// buildMessagingOptions constructs Twilio messaging options
func buildMessagingOptions(flags Flags) []messaging.Option {
	var msgOpts []messaging.Option
	if *flags.twilioSID != "" {
		msgOpts = append(msgOpts, messaging.WithAccountSID(*flags.twilioSID))
	}
	if *flags.twilioToken != "" {
		msgOpts = append(msgOpts, messaging.WithAuthToken(*flags.twilioToken))
	}
	if *flags.twilioFrom != "" {
		msgOpts = append(msgOpts, messaging.WithFromNumber(*flags.twilioFrom))
	}
	return msgOpts
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(flags Flags, config Config) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.reminderCron != "" {
		apiOpts = append(apiOpts, api.WithReminderCron(*flags.reminderCron))
	}
	apiOpts = append(apiOpts, api.WithRules(config.Rules))
	return apiOpts
}
