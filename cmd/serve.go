package cmd

import (
	"log"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/tender-pricer/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the run history dashboard",
	Run: func(cmd *cobra.Command, args []string) {
		runServer()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServer() {
	appCfg, database := mustOpenDB()
	defer database.Close()

	router, err := web.NewRouter(database)
	if err != nil {
		log.Fatalf("Failed to build router: %v", err)
	}

	log.Printf("🌐 Dashboard started at http://localhost%s", appCfg.ServeAddr)
	server := &http.Server{
		Addr:         appCfg.ServeAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
