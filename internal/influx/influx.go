package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/qppath/qppath/internal/config"
	"github.com/qppath/qppath/pkg/core"
	"github.com/rs/zerolog"
)

// CycleMeasurement is the measurement name of planning cycle points.
const CycleMeasurement = "planning_cycle"

// BackupFileName is the line-protocol backup written when the server is unreachable.
const BackupFileName = "influx_backup.lp.gz"

// retention for buckets created on connect
const retentionSeconds = 60 * 60 * 24 * 90

// ErrNotConnected is returned when neither the server nor a backup file is available.
var ErrNotConnected = errors.New("influxDB client not initialized and backup writer not available")

// Manager handles InfluxDB connections and writes.
type Manager struct {
	Client       influxdb2.Client
	Writers      map[string]influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	BucketNames  []string
	Logger       zerolog.Logger
	BackupPath   string

	cfg        config.InfluxConfig
	backupFile *os.File
}

// NewManager creates a new InfluxDB manager for one org and bucket.
func NewManager(log zerolog.Logger, cfg config.InfluxConfig) *Manager {
	return &Manager{
		Writers:     make(map[string]influxdb2_api.WriteAPI),
		BucketNames: []string{cfg.Bucket},
		Logger:      log,
		BackupPath:  filepath.Join(cfg.BackupDir, BackupFileName),
		cfg:         cfg,
	}
}

// Connect establishes a connection to InfluxDB. When the server does not
// answer, points go to a gzip backup file instead and Connect succeeds.
func (m *Manager) Connect(ctx context.Context) error {
	m.Client = influxdb2.NewClientWithOptions(
		m.cfg.URL(),
		m.cfg.Token,
		influxdb2.DefaultOptions().
			SetBatchSize(2500).
			SetFlushInterval(1000),
	)

	// validate client connection health
	running, err := m.Client.Ping(ctx)
	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Err(err).Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")
			if err := m.openBackup(); err != nil {
				return err
			}
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBuckets(ctx); err != nil {
		return err
	}
	m.CreateWriters()
	m.Logger.Info().Str("url", m.cfg.URL()).Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) openBackup() error {
	if dir := filepath.Dir(m.BackupPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("error creating backup directory: %w", err)
		}
	}
	file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("error creating backup file: %w", err)
	}
	m.backupFile = file
	m.BackupWriter = gzip.NewWriter(file)
	return nil
}

func (m *Manager) setupOrganizationAndBuckets(ctx context.Context) error {
	orgName := m.cfg.Org

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure buckets exist with 90 day retention
	for _, bucket := range m.BucketNames {
		if _, err := m.Client.BucketsAPI().FindBucketByName(ctx, bucket); err == nil {
			continue
		}
		m.Logger.Info().Str("bucket", bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: retentionSeconds,
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

// CreateWriters creates write APIs for all configured buckets.
func (m *Manager) CreateWriters() {
	for _, bucket := range m.BucketNames {
		m.Writers[bucket] = m.Client.WriteAPI(m.cfg.Org, bucket)

		errorsCh := m.Writers[bucket].Errors()
		go func(bucketName string, errorsCh <-chan error) {
			for writeErr := range errorsCh {
				m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
					Msg("Error sending data to InfluxDB")
			}
		}(bucket, errorsCh)
	}
	m.Logger.Debug().Strs("buckets", m.BucketNames).Msg("InfluxDB writers initialized")
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(bucket string, point *influxdb2_write.Point) error {
	if m.IsValid {
		w, ok := m.Writers[bucket]
		if !ok {
			return fmt.Errorf("influxDB bucket '%s' not registered", bucket)
		}
		w.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return ErrNotConnected
	}
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// WriteCycle writes one planning cycle to the configured bucket.
func (m *Manager) WriteCycle(r *core.CycleRecord) error {
	return m.WritePoint(m.cfg.Bucket, CyclePoint(r))
}

// Close flushes pending writes and releases the client and backup file.
func (m *Manager) Close() error {
	for _, w := range m.Writers {
		w.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	m.IsValid = false

	var err error
	if m.BackupWriter != nil {
		err = m.BackupWriter.Close()
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		if closeErr := m.backupFile.Close(); err == nil {
			err = closeErr
		}
		m.backupFile = nil
	}
	return err
}

// CyclePoint converts a cycle record to an InfluxDB point tagged by result.
func CyclePoint(r *core.CycleRecord) *influxdb2_write.Point {
	point := influxdb2_write.NewPointWithMeasurement(CycleMeasurement).
		AddTag("result", string(r.Result)).
		AddField("cycle", int64(r.Cycle)).
		AddField("ego_s", r.EgoPoint.S).
		AddField("ego_l", r.EgoPoint.L).
		AddField("ego_dl", r.EgoPoint.DL).
		AddField("ego_ddl", r.EgoPoint.DDL).
		AddField("speed", r.Vehicle.Speed).
		AddField("stations", int64(r.Corridor.Len())).
		AddField("crossed_stations", int64(len(r.Corridor.CrossedStations()))).
		AddField("obstacles", int64(r.ObstacleCount)).
		AddField("solver_ms", float64(r.SolverDuration.Microseconds())/1000).
		SetTime(r.Time)

	if n := len(r.Points); n > 0 {
		point.AddField("end_l", r.Points[n-1].L)
	}
	return point
}
