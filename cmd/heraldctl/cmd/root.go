package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/nsqio/go-nsq"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/heraldhq/herald/internal/db"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	cfgFile    string
	nsqdAddr   string
	eventTopic string
	dsn        string
	timeout    time.Duration
	outputJSON bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "heraldctl",
	Short: "Herald CLI - Interact with the Herald notification engine",
	Long: `Herald CLI (heraldctl) is a command line tool for operating the Herald
routing and delivery engine.

You can use it to publish events, inspect delivery outcomes, validate the
routing configuration, and list or replay dead letters.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.heraldctl.yaml)")
	rootCmd.PersistentFlags().StringVar(&nsqdAddr, "nsqd", "localhost:4150", "nsqd TCP address")
	rootCmd.PersistentFlags().StringVar(&eventTopic, "topic", "events", "event topic")
	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "Postgres DSN (overrides HERALD_DSN env var)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "request timeout")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output in JSON format")

	viper.BindPFlag("nsqd", rootCmd.PersistentFlags().Lookup("nsqd"))
	viper.BindPFlag("topic", rootCmd.PersistentFlags().Lookup("topic"))
	viper.BindPFlag("dsn", rootCmd.PersistentFlags().Lookup("dsn"))
	viper.BindPFlag("timeout", rootCmd.PersistentFlags().Lookup("timeout"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(".heraldctl")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	if !rootCmd.PersistentFlags().Changed("nsqd") {
		if s := viper.GetString("nsqd"); s != "" {
			nsqdAddr = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("topic") {
		if s := viper.GetString("topic"); s != "" {
			eventTopic = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("dsn") {
		if s := viper.GetString("dsn"); s != "" {
			dsn = s
		} else if s := os.Getenv("HERALD_DSN"); s != "" {
			dsn = s
		}
	}
	if !rootCmd.PersistentFlags().Changed("timeout") {
		if d := viper.GetDuration("timeout"); d > 0 {
			timeout = d
		}
	}
	if !rootCmd.PersistentFlags().Changed("json") {
		outputJSON = viper.GetBool("json")
	}
}

// newProducer connects to nsqd for event publishing.
func newProducer() (*nsq.Producer, error) {
	producer, err := nsq.NewProducer(nsqdAddr, nsq.NewConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nsqd: %w", err)
	}
	if err := producer.Ping(); err != nil {
		producer.Stop()
		return nil, fmt.Errorf("nsqd unreachable at %s: %w", nsqdAddr, err)
	}
	return producer, nil
}

// connectDB opens the Postgres pool the engine writes to.
func connectDB(ctx context.Context) (*pgxpool.Pool, func(), error) {
	if dsn == "" {
		return nil, nil, fmt.Errorf("no DSN: pass --dsn or set HERALD_DSN")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	// a CLI invocation needs far fewer connections than the engine
	pool, err := db.Connect(ctx, dsn, 2)
	if err != nil {
		cancel()
		return nil, nil, err
	}
	cleanup := func() {
		cancel()
		pool.Close()
	}
	return pool, cleanup, nil
}

// printOutput prints the response in the requested format.
func printOutput(v interface{}) {
	if outputJSON {
		jsonData, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error marshaling to JSON: %v\n", err)
			return
		}
		fmt.Println(string(jsonData))
	} else {
		fmt.Printf("%+v\n", v)
	}
}
