package visualiser

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"

	"github.com/banshee-data/rover-sim/internal/lidarsim"
	"github.com/banshee-data/rover-sim/internal/monitoring"
)

// Config holds configuration for the visualiser gRPC server.
type Config struct {
	// ListenAddr is the address to listen on (e.g., "localhost:50061")
	ListenAddr string

	// SensorID names the simulated sensor on the stream
	SensorID string

	// MaxClients is the maximum number of concurrent streaming clients
	MaxClients int

	// ClientBuffer is the per-client frame queue depth
	ClientBuffer int

	// DecimationRatio thins every published cloud; 1 keeps all points
	DecimationRatio float32

	// StatsInterval is how often publisher stats are logged (default: 5s)
	StatsInterval time.Duration
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{
		ListenAddr:      "localhost:50061",
		SensorID:        "lidar_link",
		MaxClients:      5,
		ClientBuffer:    10,
		DecimationRatio: 1,
		StatsInterval:   5 * time.Second,
	}
}

// Publisher owns the gRPC server and fans frames out to streaming clients.
type Publisher struct {
	config   Config
	server   *grpc.Server
	listener net.Listener

	frameChan chan *PointCloud
	clients   map[string]*clientStream
	clientsMu sync.RWMutex
	nextID    atomic.Uint64

	frameCount     atomic.Uint64
	clientCount    atomic.Int32
	droppedFrames  atomic.Uint64
	lastStatsTime  time.Time
	lastFrameCount uint64
	lastStatsMu    sync.Mutex

	running atomic.Bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

type clientStream struct {
	id      string
	frameCh chan *PointCloud
	doneCh  chan struct{}
}

// NewPublisher creates a Publisher. Zero fields take DefaultConfig values.
func NewPublisher(cfg Config) *Publisher {
	def := DefaultConfig()
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}
	if cfg.ClientBuffer <= 0 {
		cfg.ClientBuffer = def.ClientBuffer
	}
	if cfg.DecimationRatio <= 0 {
		cfg.DecimationRatio = def.DecimationRatio
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = def.StatsInterval
	}
	if cfg.SensorID == "" {
		cfg.SensorID = def.SensorID
	}
	return &Publisher{
		config:    cfg,
		frameChan: make(chan *PointCloud, 100),
		clients:   make(map[string]*clientStream),
		stopCh:    make(chan struct{}),
	}
}

// Config returns the effective configuration.
func (p *Publisher) Config() Config { return p.config }

// Start binds ListenAddr and serves the point cloud service.
func (p *Publisher) Start() error {
	if p.running.Load() {
		return fmt.Errorf("publisher already running")
	}
	monitoring.Logf("[Visualiser] Attempting to bind to %s...", p.config.ListenAddr)
	lis, err := net.Listen("tcp", p.config.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return p.Serve(lis)
}

// Serve starts the gRPC server on an existing listener.
func (p *Publisher) Serve(lis net.Listener) error {
	if !p.running.CompareAndSwap(false, true) {
		return fmt.Errorf("publisher already running")
	}
	p.listener = lis

	const maxMsgSize = 16 * 1024 * 1024
	p.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	RegisterService(p.server, NewServer(p))

	p.wg.Add(1)
	go p.broadcastLoop()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		monitoring.Logf("[Visualiser] gRPC server listening on %s", lis.Addr())
		if err := p.server.Serve(lis); err != nil && p.running.Load() {
			monitoring.Logf("[Visualiser] gRPC server error: %v", err)
		}
	}()
	return nil
}

// Stop gracefully stops the gRPC server.
func (p *Publisher) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stopCh)

	if p.server != nil {
		p.server.GracefulStop()
	}
	if p.listener != nil {
		p.listener.Close()
	}
	p.wg.Wait()
	monitoring.Logf("[Visualiser] gRPC server stopped")
}

// PublishFrame converts a sensor frame and queues it for every client. It
// has the lidarsim.FrameSink signature and never blocks the sim loop.
func (p *Publisher) PublishFrame(f *lidarsim.Frame) {
	if f == nil || !p.running.Load() {
		return
	}
	pc := NewPointCloud(p.config.SensorID, f)
	pc.Decimate(p.config.DecimationRatio)
	p.Publish(pc)
}

// Publish queues a cloud for broadcast, dropping it if the queue is full.
func (p *Publisher) Publish(pc *PointCloud) {
	if pc == nil || !p.running.Load() {
		return
	}
	queueDepth := len(p.frameChan)
	select {
	case p.frameChan <- pc:
		count := p.frameCount.Add(1)
		p.logPeriodicStats(count, pc.PointCount, queueDepth)
	default:
		dropped := p.droppedFrames.Add(1)
		monitoring.Logf("[Visualiser] DROPPED frame %d (total dropped: %d), channel full, points=%d",
			pc.FrameID, dropped, pc.PointCount)
	}
}

func (p *Publisher) logPeriodicStats(frameCount uint64, pointCount, queueDepth int) {
	p.lastStatsMu.Lock()
	defer p.lastStatsMu.Unlock()

	now := time.Now()
	if p.lastStatsTime.IsZero() {
		p.lastStatsTime = now
		p.lastFrameCount = frameCount
		return
	}
	elapsed := now.Sub(p.lastStatsTime)
	if elapsed >= p.config.StatsInterval {
		framesInInterval := frameCount - p.lastFrameCount
		fps := float64(framesInInterval) / elapsed.Seconds()
		monitoring.Logf("[Visualiser] Stats: fps=%.1f frames=%d dropped=%d clients=%d queue=%d/100 last_frame: points=%d",
			fps, framesInInterval, p.droppedFrames.Load(), p.clientCount.Load(), queueDepth, pointCount)
		p.lastStatsTime = now
		p.lastFrameCount = frameCount
	}
}

func (p *Publisher) broadcastLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		case frame := <-p.frameChan:
			p.clientsMu.RLock()
			for _, client := range p.clients {
				select {
				case client.frameCh <- frame:
				default:
					// Slow client, drop for this client only.
					p.droppedFrames.Add(1)
				}
			}
			p.clientsMu.RUnlock()
		}
	}
}

// addClient registers a client, or returns nil when MaxClients is reached.
func (p *Publisher) addClient() *clientStream {
	p.clientsMu.Lock()
	defer p.clientsMu.Unlock()
	if len(p.clients) >= p.config.MaxClients {
		return nil
	}
	client := &clientStream{
		id:      fmt.Sprintf("grpc-%d", p.nextID.Add(1)),
		frameCh: make(chan *PointCloud, p.config.ClientBuffer),
		doneCh:  make(chan struct{}),
	}
	p.clients[client.id] = client
	p.clientCount.Add(1)
	monitoring.Logf("[Visualiser] Client connected: %s (total: %d)", client.id, p.clientCount.Load())
	return client
}

func (p *Publisher) removeClient(id string) {
	p.clientsMu.Lock()
	client, ok := p.clients[id]
	if ok {
		close(client.doneCh)
		delete(p.clients, id)
	}
	p.clientsMu.Unlock()
	if ok {
		p.clientCount.Add(-1)
		monitoring.Logf("[Visualiser] Client disconnected: %s (remaining: %d)", id, p.clientCount.Load())
	}
}

// PublisherStats contains publisher statistics.
type PublisherStats struct {
	FrameCount    uint64
	DroppedFrames uint64
	ClientCount   int32
	Running       bool
}

// Stats returns current publisher statistics.
func (p *Publisher) Stats() PublisherStats {
	return PublisherStats{
		FrameCount:    p.frameCount.Load(),
		DroppedFrames: p.droppedFrames.Load(),
		ClientCount:   p.clientCount.Load(),
		Running:       p.running.Load(),
	}
}
