package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to USGS ERS and save the session cookies",
	Long: `Login authenticates against USGS ERS with the configured credentials
(LANDSATLOOK_AUTH_USERNAME, LANDSATLOOK_AUTH_PASSWORD). The cookies are saved
in Netscape format so GDAL can read protected assets through
GDAL_HTTP_COOKIEFILE.`,
	RunE: runLogin,
}

func init() {
	f := loginCmd.Flags()
	f.String("cookie-file", "", "where to save the session cookies")
	f.String("username", "", "ERS username")
}

func runLogin(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd, map[string]string{
		"auth.cookie_file": "cookie-file",
		"auth.username":    "username",
	})
	if err != nil {
		return err
	}
	defer closeApp(a)

	if err := a.Login(cmd.Context()); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if path := a.Config.Auth.CookieFile; path != "" {
		_, err = fmt.Fprintf(out, "export GDAL_HTTP_COOKIEFILE=%s\nexport GDAL_HTTP_COOKIEJAR=%s\n", path, path)
		return err
	}

	header, err := a.Session.CookieHeader(a.Config.Auth.LoginURL)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "export GDAL_HTTP_HEADERS='Cookie: %s'\n", header)
	return err
}
