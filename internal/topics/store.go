package topics

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const utf8BOM = "\ufeff"

// Store is the CSV-backed topic dataset. Every mutation reads the whole file
// and rewrites it in full; rewrites are serialized within the process and
// land via rename so readers never see a partial file.
type Store struct {
	path string
	mu   sync.Mutex
}

// NewStore creates a store for the dataset at path. The file need not exist.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the dataset location.
func (s *Store) Path() string {
	return s.path
}

// All returns every topic in file order.
func (s *Store) All() ([]Topic, error) {
	t, err := s.load()
	if err != nil {
		return nil, err
	}
	return t.topics(), nil
}

// ListUnpublished returns topics whose status is not published, preserving
// file order. A missing or empty dataset yields an empty slice.
func (s *Store) ListUnpublished() ([]Topic, error) {
	all, err := s.All()
	if err != nil {
		return nil, err
	}
	out := make([]Topic, 0, len(all))
	for _, t := range all {
		if !t.Published() {
			out = append(out, t)
		}
	}
	return out, nil
}

// SelectByPosition returns the topic at index in the unpublished view.
// The position is only meaningful until the dataset changes; prefer Get.
func (s *Store) SelectByPosition(index int) (Topic, error) {
	queue, err := s.ListUnpublished()
	if err != nil {
		return Topic{}, err
	}
	if index < 0 || index >= len(queue) {
		return Topic{}, fmt.Errorf("position %d of %d unpublished: %w", index, len(queue), ErrNotFound)
	}
	return queue[index], nil
}

// Get resolves a topic by id over the full dataset.
func (s *Store) Get(id string) (Topic, error) {
	all, err := s.All()
	if err != nil {
		return Topic{}, err
	}
	for _, t := range all {
		if t.ID == id {
			return t, nil
		}
	}
	return Topic{}, fmt.Errorf("id %q: %w", id, ErrNotFound)
}

// Stats counts total and published topics.
func (s *Store) Stats() (Stats, error) {
	all, err := s.All()
	if err != nil {
		return Stats{}, err
	}
	st := Stats{Total: len(all)}
	for _, t := range all {
		if t.Published() {
			st.Published++
		}
	}
	return st, nil
}

// MarkPublished sets the status of the first row with the given id to
// published and rewrites the dataset. An unknown id is a silent no-op.
func (s *Store) MarkPublished(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return err
	}
	row := t.find(id)
	if row < 0 {
		return nil
	}
	t.set(row, fieldStatus, string(StatusPublished))
	return s.save(t)
}

// Update applies fn to every topic and rewrites the dataset when fn reports
// at least one change. Status may only move forward to published.
func (s *Store) Update(fn func(*Topic) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return 0, err
	}
	changed := 0
	for _, topic := range t.topics() {
		before := topic
		if !fn(&topic) {
			continue
		}
		if before.Published() && !topic.Published() {
			return 0, fmt.Errorf("topic %q: status cannot move from published back to unpublished", before.ID)
		}
		t.apply(topic)
		changed++
	}
	if changed == 0 {
		return 0, nil
	}
	return changed, s.save(t)
}

// Filter keeps only the topics for which keep returns true and rewrites the
// dataset when any row was dropped. It returns the number of removed rows.
func (s *Store) Filter(keep func(Topic) bool) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := make([][]string, 0, len(t.rows))
	for _, topic := range t.topics() {
		if keep(topic) {
			kept = append(kept, t.rows[topic.row])
		}
	}
	removed := len(t.rows) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	t.rows = kept
	return removed, s.save(t)
}

// table is the raw dataset: the header as written plus every record,
// including columns the store does not interpret.
type table struct {
	bom    bool
	header []string
	rows   [][]string
	cols   [fieldCount]int
}

func (s *Store) load() (*table, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return emptyTable(), nil
		}
		return nil, fmt.Errorf("reading topics %s: %w", s.path, err)
	}
	return parseTable(data)
}

func emptyTable() *table {
	t := &table{}
	for i := range t.cols {
		t.cols[i] = -1
	}
	return t
}

func parseTable(data []byte) (*table, error) {
	t := emptyTable()
	if bytes.HasPrefix(data, []byte(utf8BOM)) {
		t.bom = true
		data = data[len(utf8BOM):]
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return t, nil
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing topics CSV: %w", err)
	}
	if len(records) == 0 {
		return t, nil
	}

	t.header = records[0]
	for i, h := range t.header {
		if f, ok := lookupField(h); ok && t.cols[f] < 0 {
			t.cols[f] = i
		}
	}
	if t.cols[fieldID] < 0 {
		return nil, fmt.Errorf("parsing topics CSV: header has no %q column", columnAliases[fieldID][0])
	}

	for _, rec := range records[1:] {
		if len(rec) < len(t.header) {
			rec = append(rec, make([]string, len(t.header)-len(rec))...)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

func (t *table) get(row int, f field) string {
	col := t.cols[f]
	if col < 0 || col >= len(t.rows[row]) {
		return ""
	}
	return t.rows[row][col]
}

func (t *table) set(row int, f field, value string) {
	col := t.cols[f]
	if col < 0 {
		col = len(t.header)
		t.header = append(t.header, columnAliases[f][0])
		t.cols[f] = col
		for i := range t.rows {
			t.rows[i] = append(t.rows[i], "")
		}
	}
	t.rows[row][col] = value
}

func (t *table) topics() []Topic {
	out := make([]Topic, len(t.rows))
	for i := range t.rows {
		out[i] = Topic{
			ID:        strings.TrimSpace(t.get(i, fieldID)),
			PainPoint: t.get(i, fieldPainPoint),
			Audience:  t.get(i, fieldAudience),
			BookTitle: t.get(i, fieldBookTitle),
			Quote:     t.get(i, fieldQuote),
			Status:    ParseStatus(t.get(i, fieldStatus)),
			row:       i,
		}
	}
	return out
}

func (t *table) find(id string) int {
	for i := range t.rows {
		if strings.TrimSpace(t.get(i, fieldID)) == id {
			return i
		}
	}
	return -1
}

// apply writes topic fields back to their row, leaving untouched cells as
// they were so unchanged values keep their original spelling.
func (t *table) apply(topic Topic) {
	cur := t.topics()[topic.row]
	if topic.ID != cur.ID {
		t.set(topic.row, fieldID, topic.ID)
	}
	if topic.PainPoint != cur.PainPoint {
		t.set(topic.row, fieldPainPoint, topic.PainPoint)
	}
	if topic.Audience != cur.Audience {
		t.set(topic.row, fieldAudience, topic.Audience)
	}
	if topic.BookTitle != cur.BookTitle {
		t.set(topic.row, fieldBookTitle, topic.BookTitle)
	}
	if topic.Quote != cur.Quote {
		t.set(topic.row, fieldQuote, topic.Quote)
	}
	if topic.Status != cur.Status {
		t.set(topic.row, fieldStatus, string(topic.Status))
	}
}

func (t *table) encode() ([]byte, error) {
	var buf bytes.Buffer
	if t.bom {
		buf.WriteString(utf8BOM)
	}
	w := csv.NewWriter(&buf)
	if err := w.Write(t.header); err != nil {
		return nil, err
	}
	if err := w.WriteAll(t.rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (s *Store) save(t *table) error {
	data, err := t.encode()
	if err != nil {
		return fmt.Errorf("encoding topics CSV: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating topics directory: %w", err)
	}

	mode := os.FileMode(0644)
	if info, err := os.Stat(s.path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp, err := os.CreateTemp(dir, ".topics-*.csv")
	if err != nil {
		return fmt.Errorf("creating temporary topics file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing topics: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing topics: %w", err)
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		return fmt.Errorf("setting topics permissions: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replacing topics %s: %w", s.path, err)
	}
	return nil
}
