package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/bumisarana/absensi-client/apiclient"
	"github.com/bumisarana/absensi-client/attendance"
	"github.com/bumisarana/absensi-client/auth"
	"github.com/bumisarana/absensi-client/config"
	"github.com/bumisarana/absensi-client/controllers"
	"github.com/bumisarana/absensi-client/location"
	"github.com/bumisarana/absensi-client/models"
	"github.com/bumisarana/absensi-client/routes"
	"github.com/bumisarana/absensi-client/session"
	"github.com/bumisarana/absensi-client/utils"
)

const usage = `absensi-client <command> [flags]

Commands:
  request-otp  -nik <NIK>            request a one-time password
  login        -nik <NIK> -otp <OTP> verify the OTP and store the session
  status                             show session and today's attendance
  checkin      [-lat -lng]           submit today's check-in
  checkout     [-lat -lng]           submit today's check-out
  history                            list past attendance entries
  logout                             revoke and clear the session
  serve                              run the local browser gateway
`

// app bundles everything a subcommand needs.
type app struct {
	cfg      config.AppConfig
	store    session.Store
	api      *apiclient.Client
	flow     *auth.Flow
	provider location.Provider
	orch     *attendance.Orchestrator
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	// Optional .env next to the binary, same precedence as the process env.
	_ = godotenv.Load()

	cfg := config.Load()
	if err := utils.InitLogger(cfg); err != nil {
		fmt.Fprintln(os.Stderr, "logger:", err)
		os.Exit(1)
	}

	a, err := buildApp(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	if err := a.run(os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func buildApp(cfg config.AppConfig) (*app, error) {
	store, err := session.Open(cfg)
	if err != nil {
		return nil, err
	}
	provider, err := location.FromConfig(cfg)
	if err != nil {
		return nil, err
	}

	api := apiclient.New(cfg.APIBaseURL)
	stateDir := filepath.Dir(cfg.SessionPath)
	flow := auth.NewFlow(api, store, utils.CollectBrowserInfo(stateDir))

	return &app{
		cfg:      cfg,
		store:    store,
		api:      api,
		flow:     flow,
		provider: provider,
		orch:     attendance.NewOrchestrator(api, flow, provider),
	}, nil
}

func (a *app) run(cmd string, args []string) error {
	ctx := context.Background()

	switch cmd {
	case "request-otp":
		fs := flag.NewFlagSet("request-otp", flag.ExitOnError)
		nik := fs.String("nik", "", "employee NIK")
		_ = fs.Parse(args)
		return a.requestOTP(ctx, *nik)
	case "login":
		fs := flag.NewFlagSet("login", flag.ExitOnError)
		nik := fs.String("nik", "", "employee NIK")
		otp := fs.String("otp", "", "one-time password")
		_ = fs.Parse(args)
		return a.login(ctx, *nik, *otp)
	case "status":
		return a.status(ctx)
	case "checkin":
		return a.attend(ctx, args, a.orch.CheckIn)
	case "checkout":
		return a.attend(ctx, args, a.orch.CheckOut)
	case "history":
		return a.history(ctx)
	case "logout":
		return a.logout(ctx)
	case "serve":
		return a.serve()
	default:
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) requestOTP(ctx context.Context, nik string) error {
	if err := a.flow.RequestOTP(ctx, nik); err != nil {
		return err
	}
	fmt.Println("OTP sent. Complete the login with: absensi-client login -nik", nik, "-otp <code>")
	return nil
}

func (a *app) login(ctx context.Context, nik, otp string) error {
	if err := a.flow.VerifyOTP(ctx, nik, otp); err != nil {
		return err
	}
	user, err := a.store.User()
	if err != nil || user == nil {
		return fmt.Errorf("login succeeded but session could not be read back")
	}
	fmt.Printf("Logged in as %s (%s), unit %s\n", user.KarNama, user.KarNik, user.KarKdUnit)
	return nil
}

func (a *app) status(ctx context.Context) error {
	res, err := a.flow.CheckAuth(ctx)
	if err != nil {
		return err
	}
	if !res.Authenticated {
		fmt.Println("Not logged in.")
		return nil
	}

	src := "verified by server"
	if res.FromCache {
		src = "cached, server unreachable"
	}
	fmt.Printf("Logged in as %s (%s), unit %s [%s]\n", res.User.KarNama, res.User.KarNik, res.User.KarKdUnit, src)

	if token, err := a.store.Token(); err == nil && token != "" {
		if exp, ok := utils.PeekTokenExpiry(token); ok {
			fmt.Printf("Credential expires %s\n", exp.Local().Format(time.RFC1123))
		}
	}

	if err := a.orch.Init(ctx); err != nil {
		return err
	}
	printSnapshot(a.orch.Snapshot())
	return nil
}

// attend runs one attendance action, optionally seeding a manual location
// from the -lat/-lng flags first.
func (a *app) attend(ctx context.Context, args []string, action func(context.Context) error) error {
	fs := flag.NewFlagSet("attend", flag.ExitOnError)
	lat := fs.Float64("lat", 0, "current latitude (manual provider)")
	lng := fs.Float64("lng", 0, "current longitude (manual provider)")
	_ = fs.Parse(args)

	if manual, ok := a.provider.(*location.Manual); ok {
		seen := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { seen[f.Name] = true })
		if !seen["lat"] || !seen["lng"] {
			return fmt.Errorf("manual location provider requires -lat and -lng")
		}
		if err := manual.Set(models.Location{Latitude: *lat, Longitude: *lng}); err != nil {
			return err
		}
	}

	if err := a.orch.Init(ctx); err != nil {
		return err
	}
	if err := action(ctx); err != nil {
		return err
	}
	fmt.Println("Attendance recorded.")
	printSnapshot(a.orch.Snapshot())
	return nil
}

func (a *app) history(ctx context.Context) error {
	if err := a.orch.Init(ctx); err != nil {
		return err
	}
	entries, err := a.orch.History(ctx)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No attendance history.")
		return nil
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(entries)
}

func (a *app) logout(ctx context.Context) error {
	if err := a.flow.Logout(ctx); err != nil {
		return err
	}
	fmt.Println("Logged out.")
	return nil
}

func (a *app) serve() error {
	secret := []byte(a.cfg.GatewaySecret)
	if len(secret) == 0 {
		// Ephemeral secret: browser sessions will not survive a restart.
		buf := make([]byte, 32)
		if _, err := rand.Read(buf); err != nil {
			return err
		}
		secret = []byte(hex.EncodeToString(buf))
		utils.Sugar.Warn("GATEWAY_SECRET not set, using an ephemeral session secret")
	}

	var manual *location.Manual
	if m, ok := a.provider.(*location.Manual); ok {
		manual = m
	}

	authCtl := controllers.NewAuthController(a.flow, secret)
	dashCtl := controllers.NewDashboardController(a.orch, manual)
	r := routes.SetupRouter(a.cfg, authCtl, dashCtl, secret)

	utils.Sugar.Infof("Starting gateway on port %s (graceful)", a.cfg.AppPort)
	return utils.GraceServer(":"+a.cfg.AppPort, r)
}

func printSnapshot(snap attendance.Snapshot) {
	fmt.Printf("Unit: %s (%s)\n", snap.Unit.NmUnit, snap.Unit.KdUnit)
	if snap.HasLocation {
		inOut := "outside"
		if snap.WithinRange {
			inOut = "inside"
		}
		fmt.Printf("Distance: %.0f m (%s the %.0f m range)\n", snap.DistanceMeters, inOut, attendance.RangeThresholdMeters)
	} else {
		fmt.Println("Distance: unknown (no location reading)")
	}
	fmt.Printf("Today: %s", snap.Status)
	if snap.Today.HasCheckedIn() {
		fmt.Printf("  in=%s", snap.Today.CheckInTime)
	}
	if snap.Today.HasCheckedOut() {
		fmt.Printf("  out=%s", snap.Today.CheckOutTime)
	}
	fmt.Println()
}
