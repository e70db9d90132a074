package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/shilovk/yandex-cloud-tools/internal/compute"
)

// FakeCloud simulates the compute control plane: instance documents,
// snapshot listings, lifecycle and snapshot operations, and the IAM
// token exchange. All mutators are safe for concurrent handlers.
type FakeCloud struct {
	mu         sync.Mutex
	instances  map[string]compute.Instance
	snapshots  map[string]compute.Snapshot
	operations map[string]*operationState
	requests   []string
	nextOp     int
	nextSnap   int

	// QuotaExceeded makes snapshot creates fail with HTTP 429.
	QuotaExceeded bool
	// RejectOAuth makes the IAM exchange fail with HTTP 401.
	RejectOAuth bool
	// PollsUntilDone is how many status polls an operation takes to
	// report done. Zero or one means the first poll.
	PollsUntilDone int
	// PageSize splits snapshot listings into pages when positive.
	PageSize int

	server *httptest.Server
}

type operationState struct {
	op        compute.Operation
	pollsLeft int
}

// NewFakeCloud starts the fake on an ephemeral port. Call Close when
// done.
func NewFakeCloud() *FakeCloud {
	f := &FakeCloud{
		instances:  make(map[string]compute.Instance),
		snapshots:  make(map[string]compute.Snapshot),
		operations: make(map[string]*operationState),
	}
	f.server = httptest.NewServer(http.HandlerFunc(f.handle))
	return f
}

// Close shuts the fake down.
func (f *FakeCloud) Close() { f.server.Close() }

// URL returns the fake's base URL.
func (f *FakeCloud) URL() string { return f.server.URL }

// Endpoints returns service URLs pointing at the fake.
func (f *FakeCloud) Endpoints() compute.Endpoints {
	return compute.Endpoints{
		Instances:  f.server.URL + "/compute/v1/instances",
		Snapshots:  f.server.URL + "/compute/v1/snapshots",
		Operations: f.server.URL + "/operations",
	}
}

// IAMURL returns the fake's token exchange URL.
func (f *FakeCloud) IAMURL() string { return f.server.URL + "/iam/v1/tokens" }

// Client returns a compute client wired to the fake.
func (f *FakeCloud) Client() *compute.Client {
	return compute.NewClient(compute.StaticToken("test-token"),
		compute.WithEndpoints(f.Endpoints()),
		compute.WithLogger(DiscardLogger()),
	)
}

// AddInstance registers an instance document.
func (f *FakeCloud) AddInstance(inst compute.Instance) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.instances[inst.ID] = inst
}

// RemoveInstance makes the instance unknown to the provider.
func (f *FakeCloud) RemoveInstance(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.instances, id)
}

// SetStatus overrides one instance's reported status.
func (f *FakeCloud) SetStatus(id string, status compute.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	inst := f.instances[id]
	inst.Status = status
	f.instances[id] = inst
}

// AddSnapshot registers a snapshot document.
func (f *FakeCloud) AddSnapshot(snap compute.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshots[snap.ID] = snap
}

// Snapshots returns the current snapshot documents sorted by ID.
func (f *FakeCloud) Snapshots() []compute.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]compute.Snapshot, 0, len(f.snapshots))
	for _, s := range f.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Requests returns every request seen so far as "METHOD /path" lines.
func (f *FakeCloud) Requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.requests))
	copy(out, f.requests)
	return out
}

func (f *FakeCloud) handle(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	f.mu.Unlock()

	path := r.URL.Path
	switch {
	case path == "/iam/v1/tokens" && r.Method == http.MethodPost:
		f.handleIAM(w, r)
	case strings.HasPrefix(path, "/compute/v1/instances/"):
		f.handleInstance(w, r, strings.TrimPrefix(path, "/compute/v1/instances/"))
	case path == "/compute/v1/snapshots" && r.Method == http.MethodGet:
		f.handleListSnapshots(w, r)
	case path == "/compute/v1/snapshots" && r.Method == http.MethodPost:
		f.handleCreateSnapshot(w, r)
	case strings.HasPrefix(path, "/compute/v1/snapshots/") && r.Method == http.MethodDelete:
		f.handleDeleteSnapshot(w, strings.TrimPrefix(path, "/compute/v1/snapshots/"))
	case strings.HasPrefix(path, "/operations/") && r.Method == http.MethodGet:
		f.handleOperation(w, strings.TrimPrefix(path, "/operations/"))
	default:
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "no route for " + path})
	}
}

func (f *FakeCloud) handleIAM(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OAuth string `json:"yandexPassportOauthToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request body"})
		return
	}
	if f.RejectOAuth || req.OAuth == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"message": "oauth token is invalid"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"iamToken":  "iam-" + req.OAuth,
		"expiresAt": time.Now().UTC().Add(12 * time.Hour).Format(time.RFC3339),
	})
}

func (f *FakeCloud) handleInstance(w http.ResponseWriter, r *http.Request, rest string) {
	id, action, hasAction := strings.Cut(rest, ":")

	f.mu.Lock()
	defer f.mu.Unlock()
	inst, ok := f.instances[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "instance " + id + " not found"})
		return
	}
	if !hasAction {
		writeJSON(w, http.StatusOK, inst)
		return
	}

	switch action {
	case "start", "restart":
		inst.Status = compute.StatusRunning
	case "stop":
		inst.Status = compute.StatusStopped
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "unknown action " + action})
		return
	}
	f.instances[id] = inst
	writeJSON(w, http.StatusOK, f.newOperation("instance "+action, ""))
}

func (f *FakeCloud) handleListSnapshots(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	folder := r.URL.Query().Get("folderId")
	var all []compute.Snapshot
	for _, s := range f.snapshots {
		if folder == "" || s.FolderID == folder {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })

	start := 0
	if tok := r.URL.Query().Get("pageToken"); tok != "" {
		start, _ = strconv.Atoi(tok)
	}
	if start > len(all) {
		start = len(all)
	}
	end := len(all)
	next := ""
	if f.PageSize > 0 && start+f.PageSize < len(all) {
		end = start + f.PageSize
		next = strconv.Itoa(end)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"snapshots":     all[start:end],
		"nextPageToken": next,
	})
}

func (f *FakeCloud) handleCreateSnapshot(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.QuotaExceeded {
		writeJSON(w, http.StatusTooManyRequests, map[string]string{
			"message": "The limit on maximum number of active operations has exceeded",
		})
		return
	}
	var req compute.CreateSnapshotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "bad request body"})
		return
	}

	f.nextSnap++
	id := fmt.Sprintf("snap-%d", f.nextSnap)
	f.snapshots[id] = compute.Snapshot{
		ID:           id,
		Name:         req.Name,
		FolderID:     req.FolderID,
		SourceDiskID: req.DiskID,
		CreatedAt:    time.Now().UTC().Format("2006-01-02T15:04:05") + "z",
	}
	writeJSON(w, http.StatusOK, f.newOperation("Create snapshot", id))
}

func (f *FakeCloud) handleDeleteSnapshot(w http.ResponseWriter, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.snapshots[id]; !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "snapshot " + id + " not found"})
		return
	}
	delete(f.snapshots, id)
	writeJSON(w, http.StatusOK, f.newOperation("Delete snapshot", id))
}

func (f *FakeCloud) handleOperation(w http.ResponseWriter, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.operations[id]
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"message": "operation " + id + " not found"})
		return
	}
	st.pollsLeft--
	if st.pollsLeft <= 0 {
		st.op.Done = true
	}
	writeJSON(w, http.StatusOK, st.op)
}

// newOperation registers a new operation. Callers hold f.mu.
func (f *FakeCloud) newOperation(desc, snapshotID string) compute.Operation {
	f.nextOp++
	op := compute.Operation{
		ID:          fmt.Sprintf("op-%d", f.nextOp),
		Description: desc,
		Metadata:    compute.OperationMetadata{SnapshotID: snapshotID},
	}
	f.operations[op.ID] = &operationState{op: op, pollsLeft: f.PollsUntilDone}
	return op
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
