package vectorindex

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/entities"
	"github.com/zatekoja/Clinicaltriagedesign/backend/internal/domain/providers"
	apperrors "github.com/zatekoja/Clinicaltriagedesign/backend/pkg/errors"
)

const (
	indexFileName   = "knowledge_base.index"
	caseIDsFileName = "case_ids.json"

	indexMagic   = "CTRI"
	indexVersion = 1
)

// FlatIndex is a brute-force L2 similarity index over knowledge-case
// embeddings, persisted as two co-located artifacts: a binary vector blob
// and a parallel JSON list of case ids. The two files are always written
// together; the id list row order mirrors the vector row order.
type FlatIndex struct {
	dir       string
	dimension int

	mu      sync.RWMutex
	vectors [][]float32
	caseIDs []string
	loaded  bool
}

// NewFlatIndex creates a flat index persisting under dir.
func NewFlatIndex(dir string, dimension int) providers.CaseIndex {
	return &FlatIndex{
		dir:       dir,
		dimension: dimension,
	}
}

// Build rebuilds the index from the given cases and persists it. Cases
// without a stored embedding are skipped with a log line.
func (f *FlatIndex) Build(ctx context.Context, cases []*entities.KnowledgeCase) error {
	vectors := make([][]float32, 0, len(cases))
	caseIDs := make([]string, 0, len(cases))
	skipped := 0

	for _, kc := range cases {
		if !kc.HasEmbedding() {
			skipped++
			log.Warn().Str("case_id", kc.CaseID).Msg("knowledge case has no embedding, skipping")
			continue
		}
		if len(kc.Embedding) != f.dimension {
			skipped++
			log.Warn().
				Str("case_id", kc.CaseID).
				Int("got", len(kc.Embedding)).
				Int("want", f.dimension).
				Msg("knowledge case embedding has wrong dimension, skipping")
			continue
		}
		vectors = append(vectors, kc.Embedding)
		caseIDs = append(caseIDs, kc.CaseID)
	}

	if err := f.persist(vectors, caseIDs); err != nil {
		return err
	}

	f.mu.Lock()
	f.vectors = vectors
	f.caseIDs = caseIDs
	f.loaded = true
	f.mu.Unlock()

	log.Info().
		Int("indexed", len(caseIDs)).
		Int("skipped", skipped).
		Str("dir", f.dir).
		Msg("similarity index built")
	return nil
}

// Load restores the persisted index. Missing artifacts are not an error;
// Load just reports that nothing was found.
func (f *FlatIndex) Load(ctx context.Context) (bool, error) {
	indexPath := filepath.Join(f.dir, indexFileName)
	idsPath := filepath.Join(f.dir, caseIDsFileName)

	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return false, nil
	}
	if _, err := os.Stat(idsPath); os.IsNotExist(err) {
		return false, nil
	}

	vectors, err := readVectorBlob(indexPath, f.dimension)
	if err != nil {
		return false, err
	}

	raw, err := os.ReadFile(idsPath)
	if err != nil {
		return false, apperrors.NewInternalError("failed to read case id list", err)
	}
	var caseIDs []string
	if err := json.Unmarshal(raw, &caseIDs); err != nil {
		return false, apperrors.NewInternalError("failed to parse case id list", err)
	}

	if len(caseIDs) != len(vectors) {
		return false, apperrors.NewInternalError(
			fmt.Sprintf("index artifacts out of sync: %d vectors, %d case ids", len(vectors), len(caseIDs)), nil)
	}

	f.mu.Lock()
	f.vectors = vectors
	f.caseIDs = caseIDs
	f.loaded = true
	f.mu.Unlock()

	log.Info().Int("cases", len(caseIDs)).Str("dir", f.dir).Msg("similarity index loaded")
	return true, nil
}

// Search returns up to min(k, size) case ids ordered by ascending L2
// distance to the query vector.
func (f *FlatIndex) Search(ctx context.Context, query []float32, k int) ([]string, error) {
	f.mu.RLock()
	vectors := f.vectors
	caseIDs := f.caseIDs
	loaded := f.loaded
	f.mu.RUnlock()

	if !loaded || len(vectors) == 0 || k <= 0 {
		return []string{}, nil
	}
	if len(query) != f.dimension {
		return nil, apperrors.NewValidationError(
			fmt.Sprintf("query vector has dimension %d, index expects %d", len(query), f.dimension))
	}

	type scored struct {
		idx      int
		distance float64
	}

	results := make([]scored, len(vectors))
	for i, vec := range vectors {
		results[i] = scored{idx: i, distance: squaredL2(query, vec)}
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].distance < results[b].distance
	})

	if k > len(results) {
		k = len(results)
	}
	ids := make([]string, k)
	for i := 0; i < k; i++ {
		ids[i] = caseIDs[results[i].idx]
	}
	return ids, nil
}

// Size returns the number of indexed cases.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.caseIDs)
}

// persist writes both artifacts to temp files first and renames them into
// place, so a crash mid-write never leaves one artifact updated without the
// other being replaceable on the next rebuild.
func (f *FlatIndex) persist(vectors [][]float32, caseIDs []string) error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return apperrors.NewInternalError("failed to create index directory", err)
	}

	indexPath := filepath.Join(f.dir, indexFileName)
	idsPath := filepath.Join(f.dir, caseIDsFileName)
	indexTmp := indexPath + ".tmp"
	idsTmp := idsPath + ".tmp"

	if err := writeVectorBlob(indexTmp, vectors, f.dimension); err != nil {
		return err
	}

	idsRaw, err := json.Marshal(caseIDs)
	if err != nil {
		os.Remove(indexTmp)
		return apperrors.NewInternalError("failed to encode case id list", err)
	}
	if err := os.WriteFile(idsTmp, idsRaw, 0o644); err != nil {
		os.Remove(indexTmp)
		return apperrors.NewInternalError("failed to write case id list", err)
	}

	// Both temp files are complete; swap them in together.
	if err := os.Rename(indexTmp, indexPath); err != nil {
		os.Remove(indexTmp)
		os.Remove(idsTmp)
		return apperrors.NewInternalError("failed to replace index artifact", err)
	}
	if err := os.Rename(idsTmp, idsPath); err != nil {
		os.Remove(idsTmp)
		return apperrors.NewInternalError("failed to replace case id artifact", err)
	}

	return nil
}

func writeVectorBlob(path string, vectors [][]float32, dimension int) error {
	file, err := os.Create(path)
	if err != nil {
		return apperrors.NewInternalError("failed to create index artifact", err)
	}
	defer file.Close()

	header := make([]byte, 0, 16)
	header = append(header, []byte(indexMagic)...)
	header = binary.LittleEndian.AppendUint32(header, indexVersion)
	header = binary.LittleEndian.AppendUint32(header, uint32(dimension))
	header = binary.LittleEndian.AppendUint32(header, uint32(len(vectors)))
	if _, err := file.Write(header); err != nil {
		return apperrors.NewInternalError("failed to write index header", err)
	}

	buf := make([]byte, 4)
	for _, vec := range vectors {
		for _, v := range vec {
			binary.LittleEndian.PutUint32(buf, math.Float32bits(v))
			if _, err := file.Write(buf); err != nil {
				return apperrors.NewInternalError("failed to write index vectors", err)
			}
		}
	}

	return nil
}

func readVectorBlob(path string, dimension int) ([][]float32, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to read index artifact", err)
	}
	if len(raw) < 16 || string(raw[:4]) != indexMagic {
		return nil, apperrors.NewInternalError("index artifact is corrupt", nil)
	}

	version := binary.LittleEndian.Uint32(raw[4:8])
	if version != indexVersion {
		return nil, apperrors.NewInternalError(fmt.Sprintf("unsupported index version %d", version), nil)
	}
	gotDim := int(binary.LittleEndian.Uint32(raw[8:12]))
	if gotDim != dimension {
		return nil, apperrors.NewInternalError(
			fmt.Sprintf("index dimension mismatch: artifact has %d, expected %d", gotDim, dimension), nil)
	}
	count := int(binary.LittleEndian.Uint32(raw[12:16]))

	expected := 16 + count*dimension*4
	if len(raw) != expected {
		return nil, apperrors.NewInternalError(
			fmt.Sprintf("index artifact truncated: %d bytes, expected %d", len(raw), expected), nil)
	}

	vectors := make([][]float32, count)
	offset := 16
	for i := 0; i < count; i++ {
		vec := make([]float32, dimension)
		for j := 0; j < dimension; j++ {
			vec[j] = math.Float32frombits(binary.LittleEndian.Uint32(raw[offset : offset+4]))
			offset += 4
		}
		vectors[i] = vec
	}

	return vectors, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
