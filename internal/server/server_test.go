package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/audiolibrelab/jamtrack/internal/config"
	"github.com/audiolibrelab/jamtrack/internal/service"
	"github.com/audiolibrelab/jamtrack/internal/track"
)

type fakeService struct {
	armed    map[string]bool
	align    track.AlignChoice
	rolling  bool
	record   bool
	captured []service.CaptureRequest
	saved    []string
	loaded   []string
	located  int64
	stopErr  error
}

func newFakeService() *fakeService {
	return &fakeService{armed: map[string]bool{"Guitar": false}}
}

func (f *fakeService) known(name string) error {
	if _, ok := f.armed[name]; !ok {
		return fmt.Errorf("%s: %w", name, service.ErrTrackNotFound)
	}
	return nil
}

func (f *fakeService) Arm(name string, yn bool) error {
	if err := f.known(name); err != nil {
		return err
	}
	f.armed[name] = yn
	return nil
}

func (f *fakeService) SetRecordSafe(name string, yn bool) error {
	if err := f.known(name); err != nil {
		return err
	}
	if f.armed[name] {
		return fmt.Errorf("track is armed: %w", track.ErrRejected)
	}
	return nil
}

func (f *fakeService) SetAlignChoice(name string, c track.AlignChoice) error {
	f.align = c
	return f.known(name)
}

func (f *fakeService) SetMonitoring(name string, c track.MonitorChoice) error { return f.known(name) }
func (f *fakeService) RenameTrack(name, newName string) error                 { return f.known(name) }
func (f *fakeService) NewPlaylist(name string, copyCurrent bool) error        { return f.known(name) }

func (f *fakeService) Roll(record bool) error {
	f.rolling, f.record = true, record
	return nil
}

func (f *fakeService) Stop() ([]service.CaptureSummary, error) {
	f.rolling = false
	return []service.CaptureSummary{{Track: "Guitar", Regions: []string{"Guitar-1.1"}}}, f.stopErr
}

func (f *fakeService) Locate(position int64) error {
	if position < 0 {
		return fmt.Errorf("cannot locate to %d: %w", position, service.ErrInvalidRequest)
	}
	if f.record {
		return fmt.Errorf("recording: %w", track.ErrRejected)
	}
	f.located = position
	return nil
}

func (f *fakeService) Capture(name string, req service.CaptureRequest) error {
	if err := f.known(name); err != nil {
		return err
	}
	for _, p := range req.Passes {
		if p.Samples > 1<<40 {
			return fmt.Errorf("pass too long: %w", service.ErrInvalidRequest)
		}
	}
	f.captured = append(f.captured, req)
	return nil
}

func (f *fakeService) SetParameter(p config.Parameter, value string) error {
	if p != config.ParamAutoInput {
		return fmt.Errorf("unknown parameter %s", p)
	}
	return nil
}

func (f *fakeService) LoadProfile(profile string) error { return nil }
func (f *fakeService) GetConfig() *config.Config        { return config.Default() }

func (f *fakeService) Status() service.Status {
	st := service.Status{Transport: service.TransportStopped}
	if f.rolling {
		st.Transport = service.TransportRolling
	}
	return st
}

func (f *fakeService) Regions(name string) ([]service.RegionInfo, error) {
	return []service.RegionInfo{{Name: "Guitar-1.1"}}, f.known(name)
}

func (f *fakeService) GetLastError() string { return "" }

func (f *fakeService) SaveState(path string) error {
	f.saved = append(f.saved, path)
	return nil
}

func (f *fakeService) LoadState(path string) error {
	f.loaded = append(f.loaded, path)
	return nil
}
func (f *fakeService) Close() {}

func do(t *testing.T, s *Server, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var resp map[string]interface{}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("Expected JSON response, got %v", err)
	}
	return rec, resp
}

func TestHandleStatus(t *testing.T) {
	s := New(newFakeService(), "0")
	rec, resp := do(t, s, http.MethodGet, "/status", "")
	if rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if resp["transport"] != "STOPPED" {
		t.Errorf("Expected STOPPED, got %v", resp["transport"])
	}
}

func TestMethodNotAllowed(t *testing.T) {
	s := New(newFakeService(), "0")
	rec, resp := do(t, s, http.MethodGet, "/transport/roll", "")
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
	if resp["success"] != false {
		t.Error("Expected success=false")
	}
}

func TestHandleArm(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	rec, resp := do(t, s, http.MethodPost, "/tracks/Guitar/arm", `{"enabled": true}`)
	if rec.Code != http.StatusOK || resp["success"] != true {
		t.Fatalf("Expected success, got %d %v", rec.Code, resp)
	}
	if !svc.armed["Guitar"] {
		t.Error("Expected track armed")
	}

	rec, _ = do(t, s, http.MethodPost, "/tracks/Bass/arm", `{"enabled": true}`)
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown track, got %d", rec.Code)
	}

	rec, _ = do(t, s, http.MethodPost, "/tracks/Guitar/arm", `{not json`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for invalid body, got %d", rec.Code)
	}
}

func TestHandleSafe_RejectedIsConflict(t *testing.T) {
	svc := newFakeService()
	svc.armed["Guitar"] = true
	s := New(svc, "0")

	rec, resp := do(t, s, http.MethodPost, "/tracks/Guitar/safe", `{"enabled": true}`)
	if rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
	if resp["error"] == "" {
		t.Error("Expected error message")
	}
}

func TestHandleAlign(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	rec, _ := do(t, s, http.MethodPost, "/tracks/Guitar/align", `{"choice": "existing-material"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if svc.align != track.UseExistingMaterial {
		t.Errorf("Expected existing-material, got %s", svc.align)
	}

	rec, _ = do(t, s, http.MethodPost, "/tracks/Guitar/align", `{"choice": "sideways"}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown choice, got %d", rec.Code)
	}
}

func TestHandleCapture(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	rec, _ := do(t, s, http.MethodPost, "/tracks/Guitar/capture", `{"passes": []}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 without passes, got %d", rec.Code)
	}

	body := `{"passes": [{"start": 1000, "samples": 4000}], "notes": [{"at": 1200, "length": 100, "key": 60, "velocity": 100}]}`
	rec, _ = do(t, s, http.MethodPost, "/tracks/Guitar/capture", body)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if len(svc.captured) != 1 || svc.captured[0].Passes[0].Samples != 4000 || svc.captured[0].Notes[0].Key != 60 {
		t.Errorf("Unexpected capture request: %+v", svc.captured)
	}

	rec, _ = do(t, s, http.MethodPost, "/tracks/Guitar/capture", `{"passes": [{"start": 0, "samples": 1152921504606846976}]}`)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for an oversized pass, got %d", rec.Code)
	}
}

func TestHandleLocate(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	if rec, _ := do(t, s, http.MethodPost, "/transport/locate", `{"position": 96000}`); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if svc.located != 96000 {
		t.Errorf("Expected position 96000, got %d", svc.located)
	}
	if rec, _ := do(t, s, http.MethodPost, "/transport/locate", `{"position": -1}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for a negative position, got %d", rec.Code)
	}

	svc.record = true
	if rec, _ := do(t, s, http.MethodPost, "/transport/locate", `{"position": 0}`); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 while recording, got %d", rec.Code)
	}
}

func TestHandleRollAndStop(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	if rec, _ := do(t, s, http.MethodPost, "/transport/roll", `{"record": true}`); rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if !svc.rolling || !svc.record {
		t.Error("Expected transport recording")
	}

	rec, resp := do(t, s, http.MethodPost, "/transport/stop", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	captures, ok := resp["captures"].([]interface{})
	if !ok || len(captures) != 1 {
		t.Errorf("Expected one capture summary, got %v", resp["captures"])
	}

	svc.stopErr = fmt.Errorf("disk full")
	rec, resp = do(t, s, http.MethodPost, "/transport/stop", "")
	if rec.Code != http.StatusInternalServerError || resp["error"] != "disk full" {
		t.Errorf("Expected 500 with error, got %d %v", rec.Code, resp)
	}
}

func TestHandleSaveState(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	if rec, _ := do(t, s, http.MethodPost, "/state/save", ""); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 without body, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodPost, "/state/save", `{"path": "snapshot.yaml"}`); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with a file name, got %d", rec.Code)
	}
	want := filepath.Join(config.Default().Output.Directory, "snapshot.yaml")
	if len(svc.saved) != 2 || svc.saved[0] != "" || svc.saved[1] != want {
		t.Errorf("Unexpected saves: %v", svc.saved)
	}
}

func TestHandleState_RejectsPathsOutsideOutputDirectory(t *testing.T) {
	svc := newFakeService()
	s := New(svc, "0")

	for _, path := range []string{"/etc/passwd", "../session.yaml", "takes/session.yaml", "."} {
		body := fmt.Sprintf(`{"path": %q}`, path)
		if rec, _ := do(t, s, http.MethodPost, "/state/save", body); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 saving to %q, got %d", path, rec.Code)
		}
		if rec, _ := do(t, s, http.MethodPost, "/state/load", body); rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 loading from %q, got %d", path, rec.Code)
		}
	}
	if len(svc.saved) != 0 || len(svc.loaded) != 0 {
		t.Errorf("Expected no state access, got saves %v loads %v", svc.saved, svc.loaded)
	}
}

func TestHandleSetParameter(t *testing.T) {
	s := New(newFakeService(), "0")
	if rec, _ := do(t, s, http.MethodPost, "/parameters/auto-input", `{"value": "off"}`); rec.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rec.Code)
	}
	if rec, _ := do(t, s, http.MethodPost, "/parameters/volume", `{"value": "11"}`); rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown parameter, got %d", rec.Code)
	}
}
