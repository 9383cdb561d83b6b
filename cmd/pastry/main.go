package main

import (
	"context"
	"fmt"
	"log"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/mdouchement/pastry/internal/database"
	"github.com/mdouchement/pastry/internal/paste"
	"github.com/mdouchement/pastry/internal/server"
	"github.com/mdouchement/pastry/internal/storage"
	"github.com/muesli/coral"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const dbname = "pastry.db"

var (
	version  = "dev"
	revision = "none"
	date     = "unknown"

	cfg string
)

func main() {
	c := &coral.Command{
		Use:     "pastry",
		Short:   "Transient paste server",
		Version: fmt.Sprintf("%s - build %.7s @ %s - %s", version, revision, date, runtime.Version()),
		Args:    coral.ExactArgs(0),
	}
	initCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(initCmd)

	reindexCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(reindexCmd)

	serverCmd.Flags().StringVarP(&cfg, "config", "c", "", "Configuration file")
	c.AddCommand(serverCmd)

	if err := c.Execute(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func dbnameWithPath(path string) string {
	if len(path) == 0 {
		return dbname
	}
	return filepath.Join(path, dbname)
}

func setupLogger(konf *koanf.Koanf) {
	if level, err := logrus.ParseLevel(konf.String("log.level")); err == nil {
		logrus.SetLevel(level)
	}

	if filename := konf.String("log.file"); filename != "" {
		logrus.SetOutput(&lumberjack.Logger{
			Filename:   filename,
			MaxSize:    10, // megabytes
			MaxBackups: 5,
			MaxAge:     30, // days
		})
	}
}

func backend(konf *koanf.Koanf) (*storage.Dispatcher, error) {
	local := storage.NewFilesystem(konf.String("data_dir"))

	s3cfg := storage.S3Config{
		Region:    konf.String("s3.region"),
		Endpoint:  konf.String("s3.endpoint"),
		Bucket:    konf.String("s3.bucket"),
		AccessKey: konf.String("s3.access_key"),
		SecretKey: konf.String("s3.secret_key"),
	}
	if s3cfg == (storage.S3Config{}) {
		return storage.NewDispatcher(local, nil), nil
	}

	// A partially filled section is a misconfiguration, not a silent
	// fallback to local storage.
	if !s3cfg.Complete() {
		return nil, errors.New("incomplete s3 configuration")
	}

	s3, err := storage.NewS3(context.Background(), s3cfg)
	if err != nil {
		return nil, err
	}

	logrus.Infof("storing attachments in bucket %s", s3cfg.Bucket)
	return storage.NewDispatcher(local, s3), nil
}

var (
	initCmd = &coral.Command{
		Use:   "init",
		Short: "Init the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
				return err
			}

			return database.StormInit(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	reindexCmd = &coral.Command{
		Use:   "reindex",
		Short: "Reindex the database",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
				return err
			}

			return database.StormReIndex(dbnameWithPath(konf.String("database_path")))
		},
	}

	//
	//
	serverCmd = &coral.Command{
		Use:   "server",
		Short: "Start server",
		Args:  coral.ExactArgs(0),
		RunE: func(_ *coral.Command, _ []string) error {
			konf := koanf.New(".")
			if err := konf.Load(file.Provider(cfg), yaml.Parser()); err != nil {
				return err
			}
			setupLogger(konf)

			if konf.String("data_dir") == "" {
				return errors.New("data_dir not found")
			}

			db, err := database.StormOpen(dbnameWithPath(konf.String("database_path")))
			if err != nil {
				return errors.Wrap(err, "could not open database")
			}
			defer db.Close()

			dispatcher, err := backend(konf)
			if err != nil {
				return errors.Wrap(err, "could not setup storage backend")
			}

			store, err := paste.NewStore(db, dispatcher, gcDays(konf))
			if err != nil {
				return errors.Wrap(err, "could not load paste store")
			}

			defaultExpiry := konf.String("default_expiry")
			if defaultExpiry == "" {
				defaultExpiry = "1week"
			}

			engine := server.EchoEngine(server.Controller{
				Version:                version,
				Store:                  store,
				Backend:                dispatcher,
				PublicURL:              strings.TrimSuffix(konf.String("public_url"), "/"),
				AdminPassword:          konf.String("admin_password"),
				Editable:               konf.Bool("editable"),
				DefaultExpiry:          defaultExpiry,
				EternalPastes:          konf.Bool("eternal_pastes"),
				MaxFileSizeMB:          intOrDefault(konf, "max_file_size_mb", 256),
				MaxEncryptedFileSizeMB: intOrDefault(konf, "max_encrypted_file_size_mb", 64),
			})
			server.PrintRoutes(engine)

			address := konf.String("address")
			message := "could not run server"
			log.Printf("Server listening on %s\n", address)
			parts := strings.Split(address, ":")
			if len(parts) == 2 && parts[0] == "unix" {
				socketFile := parts[1]
				if _, err := os.Stat(socketFile); err == nil {
					log.Printf("Removing existing %s\n", socketFile)
					os.Remove(socketFile)
				}
				defer os.Remove(socketFile)
				listener, err := net.Listen(parts[0], socketFile)
				if err != nil {
					return err
				}
				return errors.Wrap(engine.Server.Serve(listener), message)
			}
			return errors.Wrap(engine.Start(address), message)
		},
	}
)

func intOrDefault(konf *koanf.Koanf, key string, fallback int) int {
	if v := konf.Int(key); v > 0 {
		return v
	}
	return fallback
}

// gcDays reads the inactivity retention window. Negative values would wrap
// around the unsigned conversion, they disable the window instead.
func gcDays(konf *koanf.Koanf) uint64 {
	days := konf.Int64("gc_days")
	if days < 0 {
		return 0
	}
	return uint64(days)
}
