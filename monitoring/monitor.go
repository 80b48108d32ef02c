// Package monitoring serves the state of running communicators over HTTP.
package monitoring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"runtime/pprof"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/pprof/profile"
	"github.com/gorilla/mux"
	"github.com/pkg/browser"
	"github.com/rs/xid"
	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
	"github.com/syifan/goseth"

	"github.com/sarchlab/typedcomm/comm"
	"github.com/sarchlab/typedcomm/monitoring/web"
	"github.com/sarchlab/typedcomm/timing"
)

// Monitor turns a set of communicators into an HTTP server that reports
// their timing tables.
type Monitor struct {
	lock  sync.Mutex
	comms map[int]*comm.Communicator

	portNumber  int
	openBrowser bool
	logger      zerolog.Logger

	progressBarsLock sync.Mutex
	progressBars     []*ProgressBar

	server   *http.Server
	listener net.Listener
}

// NewMonitor creates a new Monitor.
func NewMonitor() *Monitor {
	return &Monitor{
		comms:  make(map[int]*comm.Communicator),
		logger: zerolog.Nop(),
	}
}

// WithPortNumber sets the port number of the monitor.
func (m *Monitor) WithPortNumber(portNumber int) *Monitor {
	if portNumber != 0 && portNumber < 1000 {
		m.logger.Warn().
			Int("port", portNumber).
			Msg("ports below 1000 are not allowed for the monitor, using a random port")

		portNumber = 0
	}

	m.portNumber = portNumber

	return m
}

// WithBrowser makes StartServer open the monitor page in a browser.
func (m *Monitor) WithBrowser() *Monitor {
	m.openBrowser = true
	return m
}

// WithLogger sets the logger.
func (m *Monitor) WithLogger(l zerolog.Logger) *Monitor {
	m.logger = l
	return m
}

// RegisterCommunicator adds a communicator to be monitored. Communicators are
// identified by rank, so a later registration replaces an earlier one of the
// same rank.
func (m *Monitor) RegisterCommunicator(c *comm.Communicator) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.comms[c.Rank()] = c
}

func (m *Monitor) communicator(rank int) (*comm.Communicator, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	c, ok := m.comms[rank]

	return c, ok
}

func (m *Monitor) ranks() []int {
	m.lock.Lock()
	defer m.lock.Unlock()

	ranks := make([]int, 0, len(m.comms))
	for r := range m.comms {
		ranks = append(ranks, r)
	}

	sort.Ints(ranks)

	return ranks
}

// CreateProgressBar creates a new progress bar.
func (m *Monitor) CreateProgressBar(name string, total uint64) *ProgressBar {
	bar := &ProgressBar{
		ID:        xid.New().String(),
		Name:      name,
		StartTime: time.Now(),
		Total:     total,
	}

	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	m.progressBars = append(m.progressBars, bar)

	return bar
}

// CompleteProgressBar removes a bar from the monitor.
func (m *Monitor) CompleteProgressBar(pb *ProgressBar) {
	m.progressBarsLock.Lock()
	defer m.progressBarsLock.Unlock()

	newBars := make([]*ProgressBar, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		if b != pb {
			newBars = append(newBars, b)
		}
	}

	m.progressBars = newBars
}

// Router returns the handler serving the monitor API and pages.
func (m *Monitor) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/api/ranks", m.listRanks)
	r.HandleFunc("/api/timing", m.listTiming)
	r.HandleFunc("/api/timing/{rank}", m.rankTiming)
	r.HandleFunc("/api/comm/{rank}", m.communicatorDetails)
	r.HandleFunc("/api/progress", m.listProgressBars)
	r.HandleFunc("/api/resource", m.listResources)
	r.HandleFunc("/api/profile", m.collectProfile)
	r.PathPrefix("/").Handler(http.FileServer(web.GetAssets()))

	return r
}

// StartServer starts serving on the configured port, or a random one, and
// returns the URL of the monitor.
func (m *Monitor) StartServer() (string, error) {
	listener, err := net.Listen("tcp", ":"+strconv.Itoa(m.portNumber))
	if err != nil {
		return "", fmt.Errorf("monitoring: %w", err)
	}

	m.listener = listener
	m.server = &http.Server{
		Handler:           m.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	url := fmt.Sprintf("http://localhost:%d", listener.Addr().(*net.TCPAddr).Port)
	fmt.Fprintf(os.Stderr, "Monitoring communicators with %s\n", url)

	go func() {
		err := m.server.Serve(listener)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().Err(err).Msg("monitor stopped")
		}
	}()

	if m.openBrowser {
		if err := browser.OpenURL(url); err != nil {
			m.logger.Warn().Err(err).Str("url", url).Msg("cannot open browser")
		}
	}

	return url, nil
}

// Close stops the server.
func (m *Monitor) Close() error {
	if m.server == nil {
		return nil
	}

	return m.server.Close()
}

type rankRsp struct {
	Rank          int    `json:"rank"`
	Size          int    `json:"size"`
	Root          int    `json:"root"`
	Owned         bool   `json:"owned"`
	Clock         string `json:"clock"`
	TimingEnabled bool   `json:"timing_enabled"`
}

func (m *Monitor) listRanks(w http.ResponseWriter, _ *http.Request) {
	rsp := []rankRsp{}

	for _, rank := range m.ranks() {
		c, _ := m.communicator(rank)
		rsp = append(rsp, rankRsp{
			Rank:          c.Rank(),
			Size:          c.Size(),
			Root:          c.Root(),
			Owned:         c.Owned(),
			Clock:         c.Timer().Clock().Name(),
			TimingEnabled: c.Timer().Enabled(),
		})
	}

	writeJSON(w, rsp)
}

type timingRsp struct {
	Rank   int                `json:"rank"`
	Size   int                `json:"size"`
	Events []timing.EventStat `json:"events"`
}

func (m *Monitor) listTiming(w http.ResponseWriter, _ *http.Request) {
	rsp := []timingRsp{}

	for _, rank := range m.ranks() {
		c, _ := m.communicator(rank)
		rsp = append(rsp, timingRsp{
			Rank:   c.Rank(),
			Size:   c.Size(),
			Events: c.Timer().Snapshot(),
		})
	}

	writeJSON(w, rsp)
}

// rankTiming serves one rank's events, or its text report with
// ?format=text&label=....
func (m *Monitor) rankTiming(w http.ResponseWriter, r *http.Request) {
	c := m.findCommunicatorOr404(w, r)
	if c == nil {
		return
	}

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, err := w.Write([]byte(c.Timer().Report(r.URL.Query().Get("label"))))
		dieOnErr(err)

		return
	}

	writeJSON(w, timingRsp{
		Rank:   c.Rank(),
		Size:   c.Size(),
		Events: c.Timer().Snapshot(),
	})
}

func (m *Monitor) communicatorDetails(w http.ResponseWriter, r *http.Request) {
	c := m.findCommunicatorOr404(w, r)
	if c == nil {
		return
	}

	serializer := goseth.NewSerializer()
	serializer.SetRoot(c)
	serializer.SetMaxDepth(1)
	err := serializer.Serialize(w)

	dieOnErr(err)
}

func (m *Monitor) findCommunicatorOr404(
	w http.ResponseWriter,
	r *http.Request,
) *comm.Communicator {
	rank, err := strconv.Atoi(mux.Vars(r)["rank"])
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintf(w, "Error: %s", err)

		return nil
	}

	c, ok := m.communicator(rank)
	if !ok {
		w.WriteHeader(http.StatusNotFound)
		_, err := w.Write([]byte("Rank not found"))
		dieOnErr(err)

		return nil
	}

	return c
}

func (m *Monitor) listProgressBars(w http.ResponseWriter, _ *http.Request) {
	m.progressBarsLock.Lock()
	bars := make([]progressSnapshot, 0, len(m.progressBars))
	for _, b := range m.progressBars {
		bars = append(bars, b.snapshot())
	}
	m.progressBarsLock.Unlock()

	writeJSON(w, bars)
}

type resourceRsp struct {
	CPUPercent float64 `json:"cpu_percent"`
	MemorySize uint64  `json:"memory_size"`
}

func (m *Monitor) listResources(w http.ResponseWriter, _ *http.Request) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	dieOnErr(err)

	cpuPercent, err := proc.CPUPercent()
	dieOnErr(err)

	memoryInfo, err := proc.MemoryInfo()
	dieOnErr(err)

	writeJSON(w, resourceRsp{
		CPUPercent: cpuPercent,
		MemorySize: memoryInfo.RSS,
	})
}

func (m *Monitor) collectProfile(w http.ResponseWriter, _ *http.Request) {
	buf := bytes.NewBuffer(nil)

	err := pprof.StartCPUProfile(buf)
	if err != nil {
		w.WriteHeader(http.StatusConflict)
		fmt.Fprintf(w, "Error: %s", err)

		return
	}

	time.Sleep(time.Second)

	pprof.StopCPUProfile()

	prof, err := profile.ParseData(buf.Bytes())
	dieOnErr(err)

	writeJSON(w, prof)
}

func writeJSON(w http.ResponseWriter, v any) {
	data, err := json.Marshal(v)
	dieOnErr(err)

	w.Header().Set("Content-Type", "application/json")
	_, err = w.Write(data)
	dieOnErr(err)
}

func dieOnErr(err error) {
	if err != nil {
		panic(err)
	}
}
