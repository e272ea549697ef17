package cmd

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hunterino/MiniKeybaord/internal/client"
)

// addRemoteFlags registers the flags shared by commands that talk to a
// running server.
func addRemoteFlags(cmd *cobra.Command) {
	cmd.Flags().String("server", "", "server URL (default derived from server.host and server.port)")
	cmd.Flags().String("api-key", "", "API key (default from auth.api_key)")
	cmd.Flags().Duration("timeout", client.DefaultTimeout, "request timeout")
}

// newRemoteClient builds a client from flags, falling back to config.
func newRemoteClient(cmd *cobra.Command) (*client.Client, error) {
	server, _ := cmd.Flags().GetString("server")
	if strings.TrimSpace(server) == "" {
		server = defaultServerURL()
	}
	apiKey, _ := cmd.Flags().GetString("api-key")
	if !cmd.Flags().Changed("api-key") {
		apiKey = viper.GetString("auth.api_key")
	}
	timeout, _ := cmd.Flags().GetDuration("timeout")
	if timeout <= 0 {
		timeout = client.DefaultTimeout
	}
	return newRemoteClientFor(server, apiKey, timeout)
}

func newRemoteClientFor(server, apiKey string, timeout time.Duration) (*client.Client, error) {
	return client.New(server, apiKey, &http.Client{Timeout: timeout})
}

func defaultServerURL() string {
	return serverURL(viper.GetString("server.host"), viper.GetInt("server.port"))
}

// serverURL turns a listen address into a URL a client can dial.
func serverURL(host string, port int) string {
	host = strings.TrimSpace(host)
	switch host {
	case "", "0.0.0.0", "::":
		host = "localhost"
	}
	if port == 0 {
		port = 8080
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}
