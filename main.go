package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/abiosoft/ishell/v2"
	"github.com/asdine/storm/v3"
	"github.com/caarlos0/env/v6"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"go.uber.org/zap"

	"github.com/gesturelink/rover/comms"
	"github.com/gesturelink/rover/gpio"
	"github.com/gesturelink/rover/journal"
	"github.com/gesturelink/rover/onboard"
)

type EnvConfig struct {
	JWT_ISSUER    string `env:"ROVER_DEVICE_ID" envDefault:"DEV"`
	DEBUG         bool   `env:"DEBUG" envDefault:"0"`
	SRCDIR        string `env:"SRCDIR" envDefault:"."`
	DBFILE        string `env:"ROVER_DB"`
	WIFI_SSID     string `env:"WIFI_SSID"`
	WIFI_PASSWORD string `env:"WIFI_PASSWORD"`
	MDNS_NAME     string `env:"MDNS_NAME" envDefault:"rover"`
	DB            *storm.DB
	Conductor     *comms.Conductor
	Rover         onboard.Rover
	Journal       *journal.Store
	Simulated     bool
}

var (
	ENV *EnvConfig
)

func init() {
	// Load main config
	ENV = new(EnvConfig)
	env.Parse(ENV)

	// setup database
	var dbFile string
	if ENV.DBFILE != "" {
		dbFile = ENV.DBFILE
	} else {
		dbFile, _ = filepath.Abs("./tmp/rover.db")
		dir := filepath.Dir(dbFile)
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			os.Mkdir(dir, 0755)
		}
	}

	db, err := openDb(dbFile)
	if err != nil {
		panic(err)
	}
	ENV.DB = db
}

func main() {
	// process flags
	simulated := flag.Bool("sim", false, "Run the device in simulator mode")
	addr := flag.String("addr", "0.0.0.0:8080", "Specify the ip:port for the HTTP API")
	flag.Parse()

	logger, _ := zap.NewProduction()
	if ENV.DEBUG {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	defer ENV.DB.Close() // close database when finished

	// Setup the device properly so everything works as expected later
	filename, err := filepath.Abs(ENV.SRCDIR + "/rover.yaml")
	if err != nil {
		panic(err)
	}

	config, err := onboard.LoadConfig(filename)
	if err != nil {
		panic(fmt.Sprintf("Unable to load config: %v", err))
	}

	ENV.Simulated = *simulated
	if ENV.Simulated {
		logger.Info("creating simulated rover")
		ENV.Rover = onboard.NewSimulatedRover(config)
	} else {
		chip, err := gpio.NewChip()
		if err != nil {
			panic(fmt.Sprintf("Unable to open gpio chip: %v", err))
		}
		defer chip.Close()

		ENV.Rover, err = onboard.NewPinRover(config, chip)
		if err != nil {
			panic(fmt.Sprintf("Unable to initialize rover: %v", err))
		}
	}

	ENV.Journal, err = journal.NewStore(ENV.DB)
	if err != nil {
		panic(err)
	}
	ENV.Conductor = comms.NewConductor()

	// identity used by the controller to find us; association with the
	// network itself is handled by the platform
	logger.Info("network identity",
		zap.String("mdns", ENV.MDNS_NAME+".local"),
		zap.String("ssid", ENV.WIFI_SSID))

	dispatcher := comms.NewDispatcher(config.Network, ENV.Rover)
	dispatcher.OnApplied = recordAction
	go func() {
		if err := dispatcher.ListenAndServe(); err != nil {
			logger.Fatal("dispatcher failed", zap.Error(err))
		}
	}()
	defer dispatcher.Stop()

	//---
	// Create a local shell
	//---
	{
		shell := ishell.New()
		shell.Println("Rover development shell")
		shell.ShowPrompt(true)

		shell.AddCmd(&ishell.Cmd{
			Name: "createsuperuser",
			Help: "createsuperuser <email> <password>",
			Func: func(c *ishell.Context) {
				// disable the '>>>' for cleaner same line input.
				c.ShowPrompt(false)
				defer c.ShowPrompt(true) // yes, revert when done.

				var email string
				if len(c.Args) >= 1 {
					email = c.Args[0]
				} else {
					c.Print("Email: ")
					email = c.ReadLine()
				}

				var password string
				if len(c.Args) >= 2 {
					password = c.Args[1]
				} else {
					c.Print("Password: ")
					password = c.ReadPassword()
				}

				user := &User{
					Email: email,
					Name:  email,
					Admin: true,
				}
				user.SetPassword([]byte(password))
				if err := ENV.DB.Save(user); err != nil {
					c.Err(err)
					return
				}

				c.Println("Superuser created")
			},
		})

		// Add device specific commands
		shell.AddCmd(&ishell.Cmd{
			Name: "send",
			Help: "send <code> - apply an action code as if received over TCP",
			Func: func(c *ishell.Context) {
				if len(c.Args) != 1 {
					c.Err(fmt.Errorf("usage: send <code>"))
					return
				}
				if err := applyLocal(c.Args[0]); err != nil {
					c.Err(err)
					return
				}
				c.Printf("%+v\n", ENV.Rover.State())
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "state",
			Help: "Reads the current output state of the rover",
			Func: func(c *ishell.Context) {
				c.Printf("%+v\n", ENV.Rover.State())
			},
		})

		shell.AddCmd(&ishell.Cmd{
			Name: "history",
			Help: "history [n] - show the most recent commands",
			Func: func(c *ishell.Context) {
				n := 10
				if len(c.Args) >= 1 {
					n, _ = strconv.Atoi(c.Args[0])
				}
				entries, err := ENV.Journal.Recent(n)
				if err != nil {
					c.Err(err)
					return
				}
				for _, e := range entries {
					c.Printf("%s  %s  %s  %s\n",
						e.At.Format(time.RFC3339), e.Code, e.Action, e.Remote)
				}
			},
		})

		// Start an instance of the shell so it can be controlled from the CLI
		go shell.Start()
	}

	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.RedirectSlashes)
	r.Use(middleware.Recoverer) // make sure this is last

	//---
	// Build the API routes
	//---
	r.Route("/api", func(r chi.Router) {
		// login
		r.Post("/login", Login)

		r.Group(func(r chi.Router) {
			// Seek, verify and validate JWT tokens
			r.Use(ValidateJWT)

			r.Get("/refresh_token", JWTRefresh)
			r.Get("/state", StateHandler)
			r.Get("/history", HistoryHandler)
		})
	})

	// Add websocket routes
	r.Route("/ws", func(r chi.Router) {
		if !ENV.DEBUG {
			// Enable JWT validation in production
			r.Use(ValidateJWT)
		} else {
			fmt.Println("Running in debug mode. Authentication disabled.")
		}

		r.Get("/state", StateStreamHandler)
	})

	logger.Info("http api listening", zap.String("addr", *addr))
	if err := http.ListenAndServe(*addr, r); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

// recordAction journals the applied action and fans it out to subscribers.
func recordAction(p comms.StatePayload) {
	if err := ENV.Journal.Append(journal.Entry{
		Code:   p.Code,
		Action: p.Action,
		Remote: p.Remote,
		At:     p.At,
	}); err != nil {
		zap.L().Warn("unable to journal action", zap.Error(err))
	}
	ENV.Conductor.Broadcast(p)
}

// applyLocal runs a code through the same decode/apply/record path the
// dispatcher uses, for the dev shell.
func applyLocal(code string) (err error) {
	action, err := onboard.ParseActionCode(code)
	if err != nil {
		return
	}
	if err = ENV.Rover.Apply(action); err != nil {
		return
	}

	recordAction(comms.StatePayload{
		Code:   code,
		Action: action.String(),
		Remote: "shell",
		State:  ENV.Rover.State(),
		At:     time.Now(),
	})
	return
}

func openDb(dbFile string) (db *storm.DB, err error) {
	db, err = storm.Open(dbFile)
	if err != nil {
		return
	}

	// call inits for each type
	if err := db.Init(&User{}); err != nil {
		return nil, err
	}

	return
}

// StateHandler reports the current output state.
func StateHandler(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]interface{}{
		"state":     ENV.Rover.State(),
		"has_motor": ENV.Rover.HasMotor(),
		"simulated": ENV.Simulated,
	})
}

// HistoryHandler returns the most recent journaled commands.
func HistoryHandler(w http.ResponseWriter, r *http.Request) {
	n := 20
	if raw := r.URL.Query().Get("n"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			render.Render(w, r, ErrInvalidRequest(fmt.Errorf("invalid n %q", raw)))
			return
		}
		n = parsed
	}

	entries, err := ENV.Journal.Recent(n)
	if err != nil {
		render.Render(w, r, ErrRender(err))
		return
	}
	render.JSON(w, r, entries)
}
