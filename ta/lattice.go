package ta

import (
	"slices"
	"sync/atomic"

	"github.com/banbox/banexg/log"
	"github.com/banbox/banfut/core"
	"github.com/banbox/banfut/kline"
	"github.com/sasha-s/go-deadlock"
	"go.uber.org/zap"
)

// derived buffer of one aggregation, built from the primary buffer
type derived struct {
	key     string
	expr    kline.AggExpr
	state   kline.State
	lock    deadlock.Mutex
	n       int // primary bars consumed
	bars    []core.Bar
	mask    []bool
	pos     []int
	version int // bumped whenever earlier derived bars may have changed
}

func (d *derived) sync(primary []core.Bar, info *core.TickerInfo) {
	if len(primary) <= d.n {
		return
	}
	if !d.expr.Extensible() {
		d.bars, d.mask = kline.Apply(d.expr, primary, info)
		d.pos = kline.Positions(d.mask)
		d.n = len(primary)
		d.version += 1
		return
	}
	if d.state == nil {
		d.state = d.expr.NewState(info)
	}
	for _, b := range primary[d.n:] {
		res, ok := d.state.Push(b)
		if ok {
			d.bars = append(d.bars, res)
		}
		d.mask = append(d.mask, ok)
		d.pos = append(d.pos, len(d.bars)-1)
	}
	d.n = len(primary)
}

/*
Series memoised values of one indicator expression for one instrument. Values are
extended when the bar buffer grows, earlier values are kept as is.
*/
type Series struct {
	Key        string
	expr       Expr
	lat        *Lattice
	agg        *derived
	lock       deadlock.Mutex
	calc       Calc
	cols       [][]float64 // aligned with the input bars (derived bars for pipes)
	mask       []bool
	pos        []int
	n          int // primary bars synced
	nIn        int
	aggVersion int
	pins       atomic.Int32
}

func (s *Series) reset() {
	s.calc = nil
	s.cols = make([][]float64, s.expr.Cols())
	s.nIn = 0
}

func (s *Series) sync() {
	primary := s.lat.buf.Snapshot()
	if len(primary) <= s.n {
		return
	}
	info := s.lat.Info
	input := primary
	if s.agg != nil {
		s.agg.lock.Lock()
		s.agg.sync(primary, info)
		input = s.agg.bars[:len(s.agg.bars):len(s.agg.bars)]
		s.mask = s.agg.mask[:len(primary):len(primary)]
		s.pos = s.agg.pos[:len(primary):len(primary)]
		version := s.agg.version
		s.agg.lock.Unlock()
		if version != s.aggVersion {
			s.aggVersion = version
			s.reset()
		}
	}
	if !s.expr.Extensible() && len(input) != s.nIn {
		s.reset()
	}
	if s.nIn < len(input) {
		if b, ok := s.expr.(Batcher); ok {
			s.cols = b.Batch(input, info)
		} else {
			if s.calc == nil {
				s.calc = s.expr.NewCalc(info)
			}
			for i := s.nIn; i < len(input); i++ {
				vals := s.calc.Next(input, i)
				for c := range s.cols {
					s.cols[c] = append(s.cols[c], vals[c])
				}
			}
		}
		s.nIn = len(input)
	}
	s.n = len(primary)
}

func (s *Series) index(i int) int {
	if i < 0 || i >= s.n {
		return -1
	}
	if s.agg != nil {
		return s.pos[i]
	}
	return i
}

/*
At value of col at primary bar i. For derived aggregations this is the value of the
latest derived bar finished at or before i, NaN before the first one.
*/
func (s *Series) At(col, i int) float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if i >= s.n {
		s.sync()
	}
	j := s.index(i)
	if j < 0 {
		return nan
	}
	return s.cols[col][j]
}

/*
Raw same as At but NaN on bars where no derived bar finished
*/
func (s *Series) Raw(col, i int) float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	if i >= s.n {
		s.sync()
	}
	j := s.index(i)
	if j < 0 || (s.agg != nil && !s.mask[i]) {
		return nan
	}
	return s.cols[col][j]
}

// Len primary bars covered, syncs first
func (s *Series) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sync()
	return s.n
}

/*
Values col projected onto every primary bar with forward fill
*/
func (s *Series) Values(col int) []float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sync()
	res := make([]float64, s.n)
	for i := range res {
		if j := s.index(i); j >= 0 {
			res[i] = s.cols[col][j]
		} else {
			res[i] = nan
		}
	}
	return res
}

/*
RawValues col projected onto the primary bars, NaN where no derived bar finished
*/
func (s *Series) RawValues(col int) []float64 {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.sync()
	if s.agg == nil {
		return slices.Clone(s.cols[col])
	}
	return kline.VertBack(s.mask, s.cols[col])
}

// Cols number of value columns
func (s *Series) Cols() int {
	return s.expr.Cols()
}

func (s *Series) Pinned() bool {
	return s.pins.Load() > 0
}

/*
Lattice per-instrument cache of derived buffers and indicator series, keyed by the
canonical expression key.
*/
type Lattice struct {
	Code    core.Ticker
	Info    *core.TickerInfo
	MaxKeys int // unpinned series are dropped once the cache holds more, 0 keeps all
	buf     *kline.Buffer
	lock    deadlock.RWMutex
	derived map[string]*derived
	series  map[string]*Series
}

func NewLattice(buf *kline.Buffer, info *core.TickerInfo, maxKeys int) *Lattice {
	return &Lattice{
		Code:    buf.Code,
		Info:    info,
		MaxKeys: maxKeys,
		buf:     buf,
		derived: make(map[string]*derived),
		series:  make(map[string]*Series),
	}
}

func (l *Lattice) Buffer() *kline.Buffer {
	return l.buf
}

/*
Get the memoised series of expr, the same key always returns the same *Series until it
is dropped by retention or Reset
*/
func (l *Lattice) Get(expr Expr) *Series {
	key := expr.Key()
	l.lock.RLock()
	s, ok := l.series[key]
	l.lock.RUnlock()
	if ok {
		return s
	}
	l.lock.Lock()
	defer l.lock.Unlock()
	if s, ok = l.series[key]; ok {
		return s
	}
	if l.MaxKeys > 0 && len(l.series) >= l.MaxKeys {
		l.prune()
	}
	s = &Series{Key: key, expr: expr, lat: l}
	if p, isPipe := expr.(*Pipe); isPipe {
		s.expr = p.Ind
		if !kline.IsIdentity(p.Agg) {
			s.agg = l.getDerived(p.Agg)
		}
	}
	s.reset()
	l.series[key] = s
	return s
}

// Pin marks the series as referenced by a compiled strategy, retention keeps it
func (l *Lattice) Pin(expr Expr) *Series {
	s := l.Get(expr)
	s.pins.Add(1)
	return s
}

func (l *Lattice) Unpin(s *Series) {
	s.pins.Add(-1)
}

func (l *Lattice) getDerived(agg kline.AggExpr) *derived {
	key := agg.Key()
	d, ok := l.derived[key]
	if !ok {
		d = &derived{key: key, expr: agg}
		l.derived[key] = d
	}
	return d
}

// prune drops unpinned series and derived buffers nobody refers to, caller holds the lock
func (l *Lattice) prune() {
	used := make(map[string]bool)
	dropped := 0
	for key, s := range l.series {
		if !s.Pinned() {
			delete(l.series, key)
			dropped += 1
		} else if s.agg != nil {
			used[s.agg.key] = true
		}
	}
	for key := range l.derived {
		if !used[key] {
			delete(l.derived, key)
		}
	}
	log.Debug("prune indicator cache", zap.String("ticker", string(l.Code)),
		zap.Int("dropped", dropped), zap.Int("kept", len(l.series)))
}

/*
Derived bars and finished mask of agg over the current buffer
*/
func (l *Lattice) Derived(agg kline.AggExpr) ([]core.Bar, []bool) {
	l.lock.Lock()
	d := l.getDerived(agg)
	l.lock.Unlock()
	primary := l.buf.Snapshot()
	d.lock.Lock()
	defer d.lock.Unlock()
	d.sync(primary, l.Info)
	return d.bars[:len(d.bars):len(d.bars)], d.mask[:d.n:d.n]
}

/*
Sync extends every cached series to the current buffer length
*/
func (l *Lattice) Sync() {
	l.lock.RLock()
	items := make([]*Series, 0, len(l.series))
	for _, s := range l.series {
		items = append(items, s)
	}
	l.lock.RUnlock()
	for _, s := range items {
		s.lock.Lock()
		s.sync()
		s.lock.Unlock()
	}
}

func (l *Lattice) Keys() []string {
	l.lock.RLock()
	res := make([]string, 0, len(l.series))
	for key := range l.series {
		res = append(res, key)
	}
	l.lock.RUnlock()
	slices.Sort(res)
	return res
}

// Reset discards every cached result, used when the instrument buffer is replaced
func (l *Lattice) Reset() {
	l.lock.Lock()
	l.derived = make(map[string]*derived)
	l.series = make(map[string]*Series)
	l.lock.Unlock()
}

/*
Compute values of expr over bars in one pass, projected onto bars with forward fill
*/
func Compute(expr Expr, bars []core.Bar, info *core.TickerInfo) [][]float64 {
	lat := NewLattice(kline.NewBuffer("", bars), info, 0)
	s := lat.Get(expr)
	res := make([][]float64, s.Cols())
	for c := range res {
		res[c] = s.Values(c)
	}
	return res
}
