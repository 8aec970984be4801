package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"homeguard/internal/config"
	"homeguard/internal/pipeline"
	"homeguard/internal/server"
)

var serveCommand = &cobra.Command{
	Use:   "serve",
	Short: "Start the homeguard pipeline and API server",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func runServe() {
	conf, err := config.LoadConfig(configFile)
	if err != nil {
		logrus.Fatal("initConfig error, ", err.Error())
	}

	logrus.Infof("config: %+v", conf)

	p, err := pipeline.New(conf)
	if err != nil {
		logrus.WithError(err).Fatalf("new pipeline")
		return
	}
	p.Start()

	srv := server.NewServer(context.Background(), conf, p)
	go srv.Start()

	termChan := make(chan os.Signal, 1)
	signal.Notify(termChan, syscall.SIGINT, syscall.SIGTERM)

	<-termChan
	logrus.Infof("homeguard is shutting down...")
	srv.Shutdown()
	p.Stop()
}
