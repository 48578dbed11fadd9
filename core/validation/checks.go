package validation

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"aesthetisim/core"
)

// checkUploadDir verifies the upload directory exists (creating it if
// needed) and is writable.
func (s *Suite) checkUploadDir() checkResult {
	dir := s.cfg.UploadDir
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			message: fmt.Sprintf("cannot create %s", dir),
			err:     err,
		}
	}

	probe := filepath.Join(dir, ".write_probe")
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return checkResult{
			message: fmt.Sprintf("%s is not writable", dir),
			err:     err,
		}
	}
	os.Remove(probe)

	return checkResult{ok: true, message: dir}
}

// checkDatabasePath verifies the database parent directory exists or can
// be created. The database file itself is created on first open.
func (s *Suite) checkDatabasePath() checkResult {
	dir := filepath.Dir(s.cfg.DBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return checkResult{
			message: fmt.Sprintf("cannot create %s", dir),
			err:     err,
		}
	}
	return checkResult{ok: true, message: s.cfg.DBPath}
}

// checkCatalogOverrides parses the catalog overrides file when configured.
// No file configured is a pass; a file that fails to parse is a failure so
// a typo is caught at startup rather than after the first request.
func (s *Suite) checkCatalogOverrides() checkResult {
	if s.cfg.CatalogPath == "" {
		return checkResult{ok: true, message: "using built-in catalog"}
	}

	if err := core.LoadCatalogOverrides(s.cfg.CatalogPath); err != nil {
		return checkResult{
			message: fmt.Sprintf("invalid overrides file %s", s.cfg.CatalogPath),
			err:     err,
		}
	}
	return checkResult{ok: true, message: s.cfg.CatalogPath}
}

// checkGenerationBackend verifies the selected backend has the
// configuration it needs. Auto mode always passes since the synthetic
// backend needs nothing.
func (s *Suite) checkGenerationBackend() checkResult {
	switch s.cfg.GenBackend {
	case core.BackendSDAPI:
		if s.cfg.SDAPIURL == "" {
			return checkResult{
				message: "sdapi backend selected without SD_API_URL",
				err:     core.ErrMissingAuth(core.BackendSDAPI),
			}
		}
		return checkResult{ok: true, message: s.cfg.SDAPIURL}

	case core.BackendOpenAI:
		if s.cfg.OpenAIAPIKey == "" {
			return checkResult{
				message: "openai backend selected without OPENAI_API_KEY",
				err:     core.ErrMissingAuth(core.BackendOpenAI),
			}
		}
		return checkResult{ok: true, message: s.cfg.OpenAIImageModel}

	case core.BackendSynthetic:
		return checkResult{ok: true, message: "synthetic backend, no credentials needed"}

	case core.BackendAuto:
		switch {
		case s.cfg.SDAPIURL != "":
			return checkResult{ok: true, message: "auto: will try sdapi first"}
		case s.cfg.OpenAIAPIKey != "":
			return checkResult{ok: true, message: "auto: will use openai"}
		default:
			return checkResult{
				ok:      true,
				warn:    true,
				message: "auto: no remote backend configured, using synthetic",
			}
		}

	default:
		return checkResult{
			message: fmt.Sprintf("unknown backend %q", s.cfg.GenBackend),
			err:     core.ErrInvalidBackend(s.cfg.GenBackend),
		}
	}
}

// checkEndpointConnectivity probes the configured SD endpoint. Skipped when
// no endpoint is configured; a failure here is a warning, not a hard error,
// because the lifecycle manager substitutes the synthetic backend when the
// remote endpoint cannot be reached.
func (s *Suite) checkEndpointConnectivity() checkResult {
	if s.cfg.SDAPIURL == "" {
		return checkResult{ok: true, message: "no remote endpoint configured"}
	}

	client := core.GetHTTPClient(s.cfg, s.timeout)
	resp, err := client.Get(s.cfg.SDAPIURL)
	if err != nil {
		return checkResult{
			ok:      true,
			warn:    true,
			message: "endpoint unreachable, generations will fall back",
			err:     err,
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return checkResult{
			ok:      true,
			warn:    true,
			message: fmt.Sprintf("endpoint returned %d", resp.StatusCode),
		}
	}

	return checkResult{ok: true, message: fmt.Sprintf("reachable (%d)", resp.StatusCode)}
}
