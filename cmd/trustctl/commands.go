package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"trustline/internal/decision"
	"trustline/internal/decision/adapters"
	"trustline/internal/geo"
	jwttoken "trustline/internal/jwt_token"
	"trustline/internal/noise"
	"trustline/internal/platform/config"
	"trustline/internal/verification/evidence"
	"trustline/internal/verification/flow"
	"trustline/internal/verification/history"
	"trustline/internal/verification/models"
	"trustline/internal/verification/service"
	"trustline/internal/verification/store"
	id "trustline/pkg/domain"
)

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	return config.Load(path)
}

// createTokenCmd mints a bearer token for local testing.
func createTokenCmd() *cobra.Command {
	var (
		user string
		ttl  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token signed with the configured key",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			userID := id.UserID(uuid.New())
			if user != "" {
				if userID, err = id.ParseUserID(user); err != nil {
					return err
				}
			}
			if ttl <= 0 {
				ttl = cfg.Auth.TokenTTL
			}
			tok, err := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience).
				GenerateAccessToken(userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "user %s, expires in %s\n", userID, ttl)
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user ID (random when empty)")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (defaults to auth.token_ttl)")
	return cmd
}

type addressFlags struct {
	street, city, state, zip string
	lat, lng                 float64
	seed                     uint64
}

func (f *addressFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.street, "street", "221B Baker Street", "street line")
	cmd.Flags().StringVar(&f.city, "city", "London", "city")
	cmd.Flags().StringVar(&f.state, "state", "Greater London", "state or region")
	cmd.Flags().StringVar(&f.zip, "zip", "NW1 6XE", "postal code")
	cmd.Flags().Float64Var(&f.lat, "lat", 51.5237, "device latitude")
	cmd.Flags().Float64Var(&f.lng, "lng", -0.1585, "device longitude")
	cmd.Flags().Uint64Var(&f.seed, "seed", 0, "noise seed (random when zero)")
}

func (f *addressFlags) source() noise.Source {
	if f.seed != 0 {
		return noise.New(f.seed)
	}
	return noise.NewRandom()
}

func (f *addressFlags) coordinate() (geo.Coordinate, error) {
	c := geo.Coordinate{Lat: f.lat, Lng: f.lng}
	return c, c.Validate()
}

// createSimulateCmd walks one in-memory session through every step and prints
// the result.
func createSimulateCmd() *cobra.Command {
	var (
		flags   addressFlags
		profile string
		latency bool
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run a complete verification in-process and print the result",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := flags.coordinate()
			if err != nil {
				return err
			}
			src := flags.source()
			var simOpts []evidence.Option
			var analyzerOpts []history.AnalyzerOption
			if !latency {
				simOpts = append(simOpts, evidence.WithLatency(0))
				analyzerOpts = append(analyzerOpts, history.WithLatency(0))
			}
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			evaluator := decision.NewService(
				evidence.NewEXIFSimulator(src, simOpts...),
				adapters.NewAddressDBAdapter(evidence.NewAddressDB(src, simOpts...)),
				decision.WithLogger(logger),
			)
			svc := service.New(store.NewInMemoryStore(), evaluator,
				history.NewSimulator(src), history.NewAnalyzer(analyzerOpts...),
				service.WithLogger(logger),
			)

			ctx := cmd.Context()
			userID := id.UserID(uuid.New())
			session, err := svc.Start(ctx, userID, profile)
			if err != nil {
				return err
			}
			steps := []func() (*models.Session, error){
				func() (*models.Session, error) {
					return svc.SetAddress(ctx, userID, session.ID, models.AddressInput{
						Street: flags.street, City: flags.city, State: flags.state, ZipCode: flags.zip,
					})
				},
				func() (*models.Session, error) { return svc.SetGPS(ctx, userID, session.ID, home, 10) },
			}
			for _, step := range steps {
				if session, err = step(); err != nil {
					return err
				}
			}
			if session.Step == models.StepPhoto {
				session, err = svc.UploadPhoto(ctx, userID, session.ID, service.PhotoUpload{
					Filename:    "simulated.jpg",
					ContentType: "image/jpeg",
					Content:     strings.NewReader(session.ID.String()),
				})
				if err != nil {
					return err
				}
			}

			session, err = verifyWithProgress(ctx, cmd.ErrOrStderr(), func(ctx context.Context) (*models.Session, error) {
				return svc.Verify(ctx, userID, session.ID)
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(session.Result)
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&profile, "profile", "", "decision profile: full or basic")
	cmd.Flags().BoolVar(&latency, "latency", false, "simulate evidence latency")
	return cmd
}

// verifyWithProgress prints the validating captions while verify runs.
func verifyWithProgress(ctx context.Context, w io.Writer, verify func(context.Context) (*models.Session, error)) (*models.Session, error) {
	type outcome struct {
		session *models.Session
		err     error
	}
	done := make(chan outcome, 1)
	go func() {
		s, err := verify(ctx)
		done <- outcome{s, err}
	}()

	next, stop := iter.Pull(flow.ValidatingPhrases())
	defer stop()
	ticker := time.NewTicker(800 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case out := <-done:
			return out.session, out.err
		case <-ticker.C:
			if phrase, ok := next(); ok {
				fmt.Fprintln(w, phrase)
			}
		}
	}
}

// createHistoryCmd prints a simulated 30-day trace as GeoJSON with its
// analysis on stderr.
func createHistoryCmd() *cobra.Command {
	var flags addressFlags
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Generate and analyze a simulated location history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			home, err := flags.coordinate()
			if err != nil {
				return err
			}
			trace := history.NewSimulator(flags.source()).Generate(time.Now().UTC(), home, flags.street, flags.city)
			analysis, err := history.Analyze(trace, home)
			if err != nil {
				return err
			}
			summary, err := json.Marshal(analysis)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), string(summary))

			out, err := history.ToGeoJSON(trace, home).MarshalJSON()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return err
		},
	}
	flags.register(cmd)
	return cmd
}

// createAddressCmd checks a comma-separated address line against the
// simulated address database.
func createAddressCmd() *cobra.Command {
	var (
		lat, lng float64
		seed     uint64
		noFix    bool
	)
	cmd := &cobra.Command{
		Use:   `address "<street, city, state zip>"`,
		Short: "Validate a free-text address line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var fix *geo.Coordinate
			if !noFix {
				c := geo.Coordinate{Lat: lat, Lng: lng}
				if err := c.Validate(); err != nil {
					return err
				}
				fix = &c
			}
			flags := addressFlags{seed: seed}
			db := evidence.NewAddressDB(flags.source(), evidence.WithLatency(0))
			validation, err := db.Validate(cmd.Context(), evidence.FreeTextQuery(args[0]), fix)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(validation)
		},
	}
	cmd.Flags().Float64Var(&lat, "lat", 51.5237, "device latitude")
	cmd.Flags().Float64Var(&lng, "lng", -0.1585, "device longitude")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "noise seed (random when zero)")
	cmd.Flags().BoolVar(&noFix, "no-fix", false, "validate without a device location")
	return cmd
}
