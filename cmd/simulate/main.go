package main

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/projetocrm/consultas/internal/appointment"
	"github.com/projetocrm/consultas/internal/clinicapi"
	"github.com/projetocrm/consultas/internal/logging"
	"github.com/projetocrm/consultas/internal/session"
	"github.com/projetocrm/consultas/internal/store"
	"github.com/projetocrm/consultas/internal/transport"
)

type SimConfig struct {
	APIBaseURL   string
	User         string
	Password     string
	Duration     time.Duration
	Workers      int
	BookingRatio float64
	Days         int
	CPFs         []string
}

// DataPool holds what workers pick from. Few slots against many workers
// force contention on the booking lock.
type DataPool struct {
	Patients      []appointment.Patient
	Practitioners []appointment.Practitioner
	Slots         []string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil:
		atomic.AddInt64(&om.Success, 1)
	case transport.StatusCode(err) == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Booking     OperationMetrics
	Directory   OperationMetrics
	ListAll     OperationMetrics
	booked      sync.Map // slot key -> appointment id
	doubleBooks int64
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	repo    *clinicapi.Repository
	logger  zerolog.Logger
	metrics Metrics
}

func main() {
	logger := logging.New(os.Stderr, getEnv("APP_ENV", "dev"), getEnv("LOG_LEVEL", "info"))
	logger.Info().Msg("simulator starting")

	cfg := loadConfig()
	if err := validateConfig(cfg); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	repo, err := connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect to API")
	}

	dataPool, err := loadDataPool(ctx, repo, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("load data pool")
	}
	logger.Info().
		Int("patients", len(dataPool.Patients)).
		Int("practitioners", len(dataPool.Practitioners)).
		Int("slots", len(dataPool.Slots)).
		Msg("data pool loaded")

	sim := &Simulator{config: cfg, pool: dataPool, repo: repo, logger: logger}
	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		User:         getEnv("SANDBOX_USER", "recepcao@clinica.com"),
		Password:     getEnv("SANDBOX_PASSWORD", "recepcao"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.5),
		Days:         getInt("SIM_DAYS", 2),
		CPFs:         strings.Split(getEnv("SIM_CPFS", store.DemoPatient.CPF), ","),
	}
	if cfg.BookingRatio > 1 {
		cfg.BookingRatio = 1
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Workers <= 0 {
		return fmt.Errorf("SIM_WORKERS must be > 0")
	}
	if cfg.Duration <= 0 {
		return fmt.Errorf("SIM_DURATION must be > 0")
	}
	if cfg.Days <= 0 {
		return fmt.Errorf("SIM_DAYS must be > 0")
	}
	return nil
}

func connect(ctx context.Context, cfg SimConfig, logger zerolog.Logger) (*clinicapi.Repository, error) {
	anon, err := transport.NewClient(cfg.APIBaseURL, 10*time.Second, nil, logger)
	if err != nil {
		return nil, err
	}
	token, err := clinicapi.NewRepository(anon).Login(ctx, cfg.User, cfg.Password)
	if err != nil {
		return nil, err
	}
	client, err := transport.NewClient(cfg.APIBaseURL, 10*time.Second, session.New(token, nil), logger)
	if err != nil {
		return nil, err
	}
	return clinicapi.NewRepository(client), nil
}

func loadDataPool(ctx context.Context, repo *clinicapi.Repository, cfg SimConfig) (*DataPool, error) {
	dataPool := &DataPool{Slots: slotGrid(time.Now(), cfg.Days)}

	for _, cpf := range cfg.CPFs {
		cpf = strings.TrimSpace(cpf)
		if cpf == "" {
			continue
		}
		p, err := repo.FindPatientByCPF(ctx, cpf)
		if err != nil {
			return nil, fmt.Errorf("load patient %s: %w", cpf, err)
		}
		dataPool.Patients = append(dataPool.Patients, *p)
	}

	practitioners, err := repo.ListPractitioners(ctx)
	if err != nil {
		return nil, fmt.Errorf("load practitioners: %w", err)
	}
	dataPool.Practitioners = practitioners

	if len(dataPool.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded")
	}
	if len(dataPool.Practitioners) == 0 {
		return nil, fmt.Errorf("no practitioners loaded")
	}
	return dataPool, nil
}

// slotGrid returns the hourly 08:00-17:00 slots of the next days days.
func slotGrid(from time.Time, days int) []string {
	var slots []string
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	for d := 1; d <= days; d++ {
		day := start.AddDate(0, 0, d)
		for h := 8; h < 18; h++ {
			slots = append(slots, day.Add(time.Duration(h)*time.Hour).Format("2006-01-02T15:04"))
		}
	}
	return slots
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.logger.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.logger.Info().Msg("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if rng.Float64() < s.config.BookingRatio {
				s.doBooking(ctx, rng)
			} else if rng.Intn(2) == 0 {
				s.doDirectory(ctx, rng)
			} else {
				s.doListAll(ctx)
			}
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	patient := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	practitioner := s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
	slot := s.pool.Slots[rng.Intn(len(s.pool.Slots))]

	payment := appointment.PaymentPix
	if patient.Insurance {
		payment = appointment.PaymentInsurance
	}

	start := time.Now()
	created, err := s.repo.CreateAppointment(ctx, appointment.Appointment{
		Specialty:     practitioner.Specialty,
		Complaint:     "simulação",
		DateTime:      slot,
		Practitioner:  &appointment.Practitioner{ID: practitioner.ID},
		Status:        appointment.StatusPending,
		PaymentMethod: payment,
		Patient:       &appointment.Patient{ID: patient.ID},
	})
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), err)

	if err == nil {
		key := fmt.Sprintf("%d|%s", practitioner.ID, slot)
		if prev, loaded := s.metrics.booked.LoadOrStore(key, created.ID); loaded {
			atomic.AddInt64(&s.metrics.doubleBooks, 1)
			s.logger.Error().Str("slot", key).Interface("first", prev).Int64("second", created.ID).Msg("double booking")
		}
	}
}

func (s *Simulator) doDirectory(ctx context.Context, rng *rand.Rand) {
	specialties := appointment.Specialties()
	start := time.Now()
	_, err := s.repo.ListPractitionersBySpecialty(ctx, specialties[rng.Intn(len(specialties))])
	if ctx.Err() != nil {
		return
	}
	if transport.StatusCode(err) == http.StatusNotFound {
		err = nil
	}
	s.metrics.Directory.Record(time.Since(start), err)
}

func (s *Simulator) doListAll(ctx context.Context) {
	start := time.Now()
	_, err := s.repo.ListAppointments(ctx)
	if ctx.Err() != nil {
		return
	}
	s.metrics.ListAll.Record(time.Since(start), err)
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n", s.config.Workers)
	fmt.Printf("Double bookings: %d\n", atomic.LoadInt64(&s.metrics.doubleBooks))
	fmt.Println()

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Directory by specialty", &s.metrics.Directory)
	printOperationReport("List appointments", &s.metrics.ListAll)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

// Helper functions

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
