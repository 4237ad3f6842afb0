package util

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/VictoriaMetrics/metrics"
	"github.com/joho/godotenv"
	"github.com/notnil/canclient"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	// Wrap is the number of characters to Wrap the help text at
	Wrap int = 50
)

// WrapString wraps a string at Wrap characters
func WrapString(text string) string {
	var wrappedLines []string
	var currentLine strings.Builder
	lineWidth := 0

	for _, word := range strings.Fields(text) {
		if lineWidth > 0 && lineWidth+1+len(word) > Wrap {
			wrappedLines = append(wrappedLines, currentLine.String())
			currentLine.Reset()
			lineWidth = 0
		}
		if lineWidth > 0 {
			currentLine.WriteString(" ")
			lineWidth++
		}
		currentLine.WriteString(word)
		lineWidth += len(word)
	}
	if currentLine.Len() > 0 {
		wrappedLines = append(wrappedLines, currentLine.String())
	}
	return strings.Join(wrappedLines, "\n")
}

// SetupBusFlags adds the transport selection flags to a command
func SetupBusFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.String("interface", canclient.DefaultSelection, WrapString("Transport to use: default (platform fallback chain), socket, virtual, multicast or bridge. The aliases socketcan, udp_multicast and kuksa are accepted"))
	flags.String("channel", canclient.DefaultChannel, WrapString("Interface name, bridge channel or multicast group address"))
	flags.Uint32("bitrate", canclient.DefaultBitrate, WrapString("Bitrate in bit/s (advisory for socketcan, configure with 'canctl link set')"))
	flags.Uint16("port", 0, WrapString("UDP port, required for the multicast transport"))
	flags.Bool("fd", false, WrapString("Enable CAN FD frames"))
	flags.String("bridge", "", WrapString("Name of the registered vendor bridge driver (empty picks the first registered)"))
	flags.String("policy", "", WrapString("YAML file with a custom fallback policy, used with --interface default"))
	flags.Bool("log-frames", false, WrapString("Log every sent and received frame at debug level"))
}

// InitConfig loads .env files and binds environment variables
func InitConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("canctl")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

// BindCommandFlags binds a command's flags to viper
func BindCommandFlags(cmd *cobra.Command) error {
	return viper.BindPFlags(cmd.Flags())
}

// GetTransportConfig reads the transport parameters from viper
func GetTransportConfig() canclient.TransportConfig {
	return canclient.TransportConfig{
		Channel:   viper.GetString("channel"),
		Bitrate:   viper.GetUint32("bitrate"),
		Port:      viper.GetUint16("port"),
		FDEnabled: viper.GetBool("fd"),
	}
}

// OpenClient builds a client from the configured flags
func OpenClient(logger *slog.Logger) (*canclient.Client, error) {
	opts := []canclient.Option{
		canclient.WithLogger(logger),
		canclient.WithCapabilities(canclient.DetectCapabilities(viper.GetString("bridge"))),
	}
	if viper.GetBool("log-frames") {
		opts = append(opts, canclient.WithFrameLogging(slog.LevelDebug, canclient.LogAll, nil))
	}

	name := viper.GetString("interface")
	if strings.EqualFold(name, canclient.DefaultSelection) {
		pol, err := GetPolicy()
		if err != nil {
			return nil, err
		}
		return canclient.NewSelector(pol, opts...).Select(), nil
	}
	if viper.GetString("policy") != "" {
		return nil, fmt.Errorf("%w: --policy only applies to --interface %s", canclient.ErrConfig, canclient.DefaultSelection)
	}
	return canclient.NewClientByName(name, GetTransportConfig(), opts...)
}

// GetPolicy returns the policy file named by --policy, or the default
// policy built from the transport flags.
func GetPolicy() (canclient.Policy, error) {
	if path := viper.GetString("policy"); path != "" {
		return canclient.LoadPolicyFile(path)
	}
	cfg := GetTransportConfig()
	return canclient.DefaultPolicy(cfg.Channel, cfg.Bitrate, cfg.FDEnabled), nil
}

// StartMetrics serves the VictoriaMetrics default set on addr at /metrics
func StartMetrics(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/metrics", func(w http.ResponseWriter, _ *http.Request) {
		metrics.WritePrometheus(w, true)
	})
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
}

// MetricsAddr returns the configured metrics listen address
func MetricsAddr() string {
	return viper.GetString("metrics-addr")
}
