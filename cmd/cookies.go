package cmd

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"mspro-labs/tender-pricer/internal/scraper"
)

var cookiesCmd = &cobra.Command{
	Use:   "cookies",
	Short: "Manage the marketplace cookies used for business prices",
}

var cookiesCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Inspect the stored cookie file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		appCfg := mustAppConfig()
		r, err := scraper.CheckCookies(appCfg.CookiesPath, time.Now())
		if err != nil {
			log.Fatalf("Cookie file %s is unusable: %v", r.Path, err)
		}
		if !r.Exists {
			fmt.Printf("❌ Cookies not found: %s\n", r.Path)
			os.Exit(1)
		}

		fmt.Printf("🍪 %s (%d bytes)\n", r.Path, r.Size)
		fmt.Printf("   %d cookies, %d expired\n", r.Count, r.Expired)
		fmt.Printf("   domains: %s\n", strings.Join(r.Domains, ", "))
		if len(r.Important) > 0 {
			fmt.Printf("   session cookies: %s\n", strings.Join(r.Important, ", "))
		} else {
			fmt.Println("   ⚠️ no session cookies found")
		}
		if r.Stale {
			fmt.Println("⚠️ More than half of the cookies have expired. Export them again.")
			os.Exit(1)
		}
		fmt.Println("✅ Cookies look usable")
	},
}

var cookiesImportCmd = &cobra.Command{
	Use:   "import [cookies.json]",
	Short: "Validate an exported cookie file and store it",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		appCfg := mustAppConfig()
		data, err := os.ReadFile(args[0])
		if err != nil {
			log.Fatalf("Failed to read %s: %v", args[0], err)
		}
		cookies, err := scraper.ParseCookies(data)
		if err != nil {
			log.Fatalf("Invalid cookie export: %v", err)
		}
		if err := os.MkdirAll(filepath.Dir(appCfg.CookiesPath), 0o700); err != nil {
			log.Fatalf("Failed to create %s: %v", filepath.Dir(appCfg.CookiesPath), err)
		}
		if err := os.WriteFile(appCfg.CookiesPath, data, 0o600); err != nil {
			log.Fatalf("Failed to store cookies: %v", err)
		}
		fmt.Printf("✅ Stored %d cookies in %s\n", len(cookies), appCfg.CookiesPath)
	},
}

var cookiesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the stored cookie file",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		appCfg := mustAppConfig()
		err := os.Remove(appCfg.CookiesPath)
		if err != nil && !os.IsNotExist(err) {
			log.Fatalf("Failed to delete cookies: %v", err)
		}
		fmt.Println("🗑️ Cookies cleared.")
	},
}

func init() {
	cookiesCmd.AddCommand(cookiesCheckCmd, cookiesImportCmd, cookiesClearCmd)
	rootCmd.AddCommand(cookiesCmd)
}
