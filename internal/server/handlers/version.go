package handlers

import (
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"github.com/fulmenhq/gofulmen/appidentity"
	"github.com/fulmenhq/gofulmen/crucible"

	"github.com/hunterino/MiniKeybaord/internal/keyboard"
)

// Build metadata injected from main via SetVersionInfo.
var (
	AppVersion   = "dev"
	AppCommit    = "unknown"
	AppBuildDate = "unknown"
	appIdentity  *appidentity.Identity
	deviceName   = keyboard.DefaultConfig.DeviceName
)

// SetVersionInfo sets the version information for the handler
func SetVersionInfo(version, commit, buildDate string) {
	AppVersion = version
	AppCommit = commit
	AppBuildDate = buildDate
}

// SetAppIdentity sets the app identity for the handler
func SetAppIdentity(identity *appidentity.Identity) {
	appIdentity = identity
}

// SetDeviceName sets the keyboard name reported by /version.
func SetDeviceName(name string) {
	if name != "" {
		deviceName = name
	}
}

// VersionResponse represents the version information response
type VersionResponse struct {
	App          AppInfo      `json:"app"`
	Keyboard     KeyboardInfo `json:"keyboard"`
	Dependencies DepInfo      `json:"dependencies"`
	Runtime      RuntimeInfo  `json:"runtime"`
}

// AppInfo contains application version details
type AppInfo struct {
	Name      string `json:"name"`
	Vendor    string `json:"vendor,omitempty"`
	Version   string `json:"version"`
	Commit    string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version,omitempty"`
}

// KeyboardInfo describes what agents must speak to attach.
type KeyboardInfo struct {
	DeviceName string   `json:"device_name"`
	AgentPath  string   `json:"agent_path"`
	FrameTypes []string `json:"frame_types"`
}

// DepInfo contains dependency version information
type DepInfo struct {
	Gofulmen string `json:"gofulmen"`
	Crucible string `json:"crucible"`
}

// RuntimeInfo contains runtime environment information
type RuntimeInfo struct {
	Platform      string `json:"platform"`
	NumCPU        int    `json:"num_cpu"`
	NumGoroutines int    `json:"num_goroutines"`
}

// VersionHandler handles version information requests
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	version := crucible.GetVersion()

	identity := appIdentity
	if identity == nil {
		fallbackName := "unknown"
		if len(os.Args) > 0 && os.Args[0] != "" {
			fallbackName = filepath.Base(os.Args[0])
		}
		identity = &appidentity.Identity{BinaryName: fallbackName}
	}

	writeJSON(w, http.StatusOK, VersionResponse{
		App: AppInfo{
			Name:      identity.BinaryName,
			Vendor:    identity.Vendor,
			Version:   AppVersion,
			Commit:    AppCommit,
			BuildDate: AppBuildDate,
			GoVersion: runtime.Version(),
		},
		Keyboard: KeyboardInfo{
			DeviceName: deviceName,
			AgentPath:  "/keyboard/agent",
			FrameTypes: []string{keyboard.FrameHello, keyboard.FrameText, keyboard.FrameReleaseAll, keyboard.FrameCombo},
		},
		Dependencies: DepInfo{
			Gofulmen: version.Gofulmen,
			Crucible: version.Crucible,
		},
		Runtime: RuntimeInfo{
			Platform:      runtime.GOOS + "/" + runtime.GOARCH,
			NumCPU:        runtime.NumCPU(),
			NumGoroutines: runtime.NumGoroutine(),
		},
	})
}
