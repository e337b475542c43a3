package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jwalitptl/chairside/internal/config"
	"github.com/jwalitptl/chairside/internal/repository/postgres"
	"github.com/jwalitptl/chairside/pkg/auth"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "chairside",
	Short:         "Administration tool for the chairside scheduling service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create missing tables and indexes",
	RunE:  runMigrate,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the jwt auth provider",
	Long: `Issue a signed bearer token for local development and integrations.

Only useful when auth.provider is jwt; the token is signed with JWT_SECRET.`,
	RunE: runToken,
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Validate the configuration and print the booking grid",
	RunE:  runConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("CHAIRSIDE_CONFIG"), "path to config file")

	tokenCmd.Flags().String("tenant", "", "tenant (dentist) id")
	tokenCmd.Flags().String("clinic", "", "clinic name shown in reminders")
	tokenCmd.Flags().String("phone", "", "clinic contact phone")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("tenant")

	rootCmd.AddCommand(migrateCmd, tokenCmd, configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrate needs database.driver postgres, got %q", cfg.Database.Driver)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
	defer cancel()

	db, err := postgres.NewDB(ctx, postgres.DBConfig{DSN: cfg.Database.DSN(cfg.Secrets.DatabasePassword)})
	if err != nil {
		return err
	}
	defer db.Close()

	if err := postgres.Migrate(ctx, db); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
	return nil
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if cfg.Auth.Provider != "jwt" {
		return fmt.Errorf("auth.provider is %q, tokens are only issued for jwt", cfg.Auth.Provider)
	}

	tenant, _ := cmd.Flags().GetString("tenant")
	clinic, _ := cmd.Flags().GetString("clinic")
	phone, _ := cmd.Flags().GetString("phone")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := auth.NewJWTVerifier(cfg.Secrets.JWTSecret, cfg.Auth.Issuer).Issue(auth.Identity{
		TenantID:   tenant,
		ClinicName: clinic,
		Phone:      phone,
	}, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runConfig(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	h := cfg.Clinic.WorkingHours
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "timezone:      %s\n", cfg.Clinic.Timezone)
	fmt.Fprintf(out, "working hours: %02d:00-%02d:00\n", h.StartHour, h.EndHour)
	fmt.Fprintf(out, "slots per day: %d of %d minutes\n", (h.EndHour-h.StartHour)*60/cfg.Clinic.SlotMinutes, cfg.Clinic.SlotMinutes)
	fmt.Fprintf(out, "storage:       %s\n", cfg.Database.Driver)
	fmt.Fprintf(out, "auth:          %s\n", cfg.Auth.Provider)
	return nil
}
