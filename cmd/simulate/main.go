package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/sirupsen/logrus"

	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/api"
	"github.com/DannyJimenezA/SaludSinFronteras-FrontEnd-sub001/internal/logging"
)

type SimConfig struct {
	APIBaseURL  string
	Duration    time.Duration
	Workers     int
	Doctors     []string
	Patients    []string
	BookRatio   float64
	CancelRatio float64
	Token       string
}

type DataPool struct {
	Slots        []slotRef
	mu           sync.RWMutex
	appointments []string
}

type slotRef struct {
	DoctorID string
	SlotID   string
}

func (dp *DataPool) AddAppointment(id string) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (string, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return "", false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p50, p95, max time.Duration) {
	om.mu.Lock()
	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))
	p50 = latencies[len(latencies)*50/100]
	p95 = latencies[min(len(latencies)*95/100, len(latencies)-1)]
	max = latencies[len(latencies)-1]
	return avg, p50, p95, max
}

type Metrics struct {
	Booking   OperationMetrics
	Cancel    OperationMetrics
	Readiness OperationMetrics
	List      OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	log     *logrus.Logger
	metrics Metrics
}

// simulate drives a running api-server with concurrent patients racing for
// the same free slots, then reports how many bookings won, conflicted or
// failed.
func main() {
	var (
		baseURL  = flag.String("api", "http://localhost:8080", "api-server base url")
		duration = flag.Duration("duration", 30*time.Second, "how long to run")
		workers  = flag.Int("workers", 10, "concurrent simulated patients")
		doctors  = flag.String("doctors", os.Getenv("SEED_DOCTOR_IDS"), "comma separated doctor ids")
		patients = flag.Int("patients", 50, "number of fake patient ids to rotate through")
		book     = flag.Float64("book", 0.5, "share of booking operations")
		cancel   = flag.Float64("cancel", 0.1, "share of cancel operations")
		token    = flag.String("token", os.Getenv("BACKEND_TOKEN"), "bearer token forwarded to the backend")
	)
	flag.Parse()

	log := logging.New(os.Getenv("APP_ENV"), os.Getenv("LOG_LEVEL"))

	cfg := SimConfig{
		APIBaseURL:  strings.TrimRight(*baseURL, "/"),
		Duration:    *duration,
		Workers:     *workers,
		Doctors:     splitIDs(*doctors),
		BookRatio:   *book,
		CancelRatio: *cancel,
		Token:       *token,
	}
	if err := validateConfig(cfg); err != nil {
		log.WithError(err).Fatal("invalid config")
	}
	for range *patients {
		cfg.Patients = append(cfg.Patients, gofakeit.UUID())
	}

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    log,
	}

	ctx, cancelLoad := context.WithTimeout(context.Background(), 30*time.Second)
	pool, err := sim.loadDataPool(ctx)
	cancelLoad()
	if err != nil {
		log.WithError(err).Fatal("load data pool")
	}
	sim.pool = pool
	log.WithFields(logrus.Fields{"slots": len(pool.Slots), "patients": len(cfg.Patients)}).Info("data pool loaded")

	sim.Run()
	sim.PrintReport()
}

func validateConfig(cfg SimConfig) error {
	if len(cfg.Doctors) == 0 {
		return fmt.Errorf("at least one doctor id is required")
	}
	if cfg.Workers <= 0 {
		return fmt.Errorf("workers must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("duration must be > 0")
	}
	if cfg.BookRatio+cfg.CancelRatio > 1 {
		return fmt.Errorf("book and cancel ratios must add up to at most 1")
	}
	return nil
}

// loadDataPool collects the free slots of every doctor as the api reports them.
func (s *Simulator) loadDataPool(ctx context.Context) (*DataPool, error) {
	pool := &DataPool{}
	for _, doctorID := range s.config.Doctors {
		var grouped api.SlotsByDateResponse
		status, err := s.call(ctx, http.MethodGet, "/doctors/"+doctorID+"/slots?available=true", "sim-admin", "admin", nil, &grouped)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("list slots of %s: status %d", doctorID, status)
		}
		for _, day := range grouped.Days {
			for _, sl := range day.Slots {
				pool.Slots = append(pool.Slots, slotRef{DoctorID: doctorID, SlotID: sl.ID})
			}
		}
	}
	if len(pool.Slots) == 0 {
		return nil, fmt.Errorf("no free slots, run cmd/seed first")
	}
	return pool, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.WithFields(logrus.Fields{"duration": s.config.Duration, "workers": s.config.Workers}).Info("starting simulation")

	var wg sync.WaitGroup
	for i := range s.config.Workers {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	patient := s.config.Patients[rng.Intn(len(s.config.Patients))]

	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookRatio:
			s.doBooking(ctx, rng, patient)
		case r < s.config.BookRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng, patient)
		case rng.Intn(2) == 0:
			s.doReadiness(ctx, rng, patient)
		default:
			s.doList(ctx, rng, patient)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand, patient string) {
	target := s.pool.Slots[rng.Intn(len(s.pool.Slots))]
	body := api.BookAppointmentRequest{DoctorID: target.DoctorID, SlotID: target.SlotID, Modality: "online", Reason: gofakeit.Sentence(6)}

	var resp api.BookingResponse
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments", patient, "patient", body, &resp)
	if err != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status)
	if status == http.StatusCreated {
		s.pool.AddAppointment(resp.Appointment.ID)
	}
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand, patient string) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodPost, "/appointments/"+id+"/cancel", patient, "patient", api.CancelAppointmentRequest{CancelReason: "simulated"}, nil)
	if err != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(start), status)
}

func (s *Simulator) doReadiness(ctx context.Context, rng *rand.Rand, patient string) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments/"+id+"/readiness", patient, "patient", nil, nil)
	if err != nil {
		return
	}
	s.metrics.Readiness.Record(time.Since(start), status)
}

func (s *Simulator) doList(ctx context.Context, rng *rand.Rand, patient string) {
	views := []string{"upcoming", "past", "cancelled", "all"}
	start := time.Now()
	status, err := s.call(ctx, http.MethodGet, "/appointments?view="+views[rng.Intn(len(views))], patient, "patient", nil, nil)
	if err != nil {
		return
	}
	s.metrics.List.Record(time.Since(start), status)
}

// call returns an error only when no response arrived, e.g. on shutdown.
func (s *Simulator) call(ctx context.Context, method, path, userID, role string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, err
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", userID)
	req.Header.Set("X-User-Role", role)
	if s.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.config.Token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		if ctx.Err() == nil {
			s.log.WithError(err).WithField("path", path).Debug("request failed")
		}
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Slots in pool: %d\n", len(s.pool.Slots))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Readiness", &s.metrics.Readiness)
	printOperationReport("List", &s.metrics.List)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, p50, p95, max := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s max=%s\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond),
		p95.Round(time.Millisecond), max.Round(time.Millisecond))
	fmt.Println()
}

func splitIDs(raw string) []string {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}
