package classifier

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"thread/models"
)

// MinExampleUses is the ML eligibility floor: a technique needs more
// curated example uses than this to get its own model; below it the
// technique is matched by regex patterns only.
const MinExampleUses = 8

// negativeRatio sizes the negative class so total labels reach roughly
// ten times the positives.
const negativeRatio = 10

// rngSeed fixes the negative-sample draw and the train/test shuffle so
// rebuilds are reproducible.
const rngSeed = 53

// CorpusSource supplies training material; implemented by the database
// store.
type CorpusSource interface {
	MLEligibleTechniques(minExamples int) ([]models.Attack, error)
	TrainingPositives(attackUID string) ([]string, error)
	TrainingFalsePositives(attackUID string) ([]string, error)
	TrueNegatives() ([]string, error)
	OtherTechniqueExamples(excludeUID string) ([]string, error)
}

// Model pairs one technique's vectorizer with its fitted classifier.
type Model struct {
	TID        string              `json:"tid"`
	Name       string              `json:"name"`
	Vectorizer *Vectorizer         `json:"vectorizer"`
	Classifier *LogisticRegression `json:"classifier"`
	Score      float64             `json:"score"`
}

// Library is the process-wide model dictionary, keyed by attack uid and
// persisted as one JSON file. Reads take the read lock; BuildAll and
// UpdateOne take the write lock, so inference never observes a half-built
// dictionary.
type Library struct {
	path string
	log  *zap.SugaredLogger

	mu     sync.RWMutex
	models map[string]*Model
}

func NewLibrary(path string, log *zap.SugaredLogger) *Library {
	return &Library{
		path:   path,
		log:    log,
		models: make(map[string]*Model),
	}
}

// Len reports how many techniques have a model.
func (l *Library) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.models)
}

// Has reports whether a model exists for the technique.
func (l *Library) Has(attackUID string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.models[attackUID]
	return ok
}

// Load reads the on-disk dictionary.
func (l *Library) Load() error {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return err
	}
	fresh := make(map[string]*Model)
	if err := json.Unmarshal(data, &fresh); err != nil {
		return fmt.Errorf("parse model dictionary %s: %w", l.path, err)
	}
	l.mu.Lock()
	l.models = fresh
	l.mu.Unlock()
	return nil
}

// LoadOrBuild uses the on-disk dictionary when it exists and parses;
// anything else triggers a full build.
func (l *Library) LoadOrBuild(src CorpusSource) error {
	if err := l.Load(); err == nil {
		l.log.Infow("model dictionary loaded", "path", l.path, "models", l.Len())
		return nil
	} else if !os.IsNotExist(err) {
		l.log.Warnw("model dictionary unreadable, rebuilding", "error", err)
	}
	return l.BuildAll(src)
}

// BuildAll trains a model for every ML-eligible technique and atomically
// replaces the on-disk dictionary.
func (l *Library) BuildAll(src CorpusSource) error {
	attacks, err := src.MLEligibleTechniques(MinExampleUses)
	if err != nil {
		return fmt.Errorf("list eligible techniques: %w", err)
	}

	rng := rand.New(rand.NewSource(rngSeed))
	fresh := make(map[string]*Model, len(attacks))
	for _, a := range attacks {
		model, err := l.trainTechnique(src, a, rng)
		if err != nil {
			l.log.Warnw("skipping technique", "tid", a.TID, "error", err)
			continue
		}
		l.log.Infow("model trained", "tid", a.TID, "score", model.Score)
		fresh[a.UID] = model
	}

	l.mu.Lock()
	l.models = fresh
	l.mu.Unlock()
	return l.save()
}

// UpdateOne trains a single technique's model and splices it into the
// existing dictionary; used when a technique newly clears the eligibility
// threshold.
func (l *Library) UpdateOne(src CorpusSource, attack models.Attack) error {
	rng := rand.New(rand.NewSource(rngSeed))
	model, err := l.trainTechnique(src, attack, rng)
	if err != nil {
		return err
	}
	l.mu.Lock()
	l.models[attack.UID] = model
	l.mu.Unlock()
	l.log.Infow("model updated", "tid", attack.TID, "score", model.Score)
	return l.save()
}

func (l *Library) trainTechnique(src CorpusSource, attack models.Attack, rng *rand.Rand) (*Model, error) {
	positives, err := src.TrainingPositives(attack.UID)
	if err != nil {
		return nil, err
	}
	if len(positives) == 0 {
		return nil, fmt.Errorf("no positive examples")
	}
	negatives, err := src.TrainingFalsePositives(attack.UID)
	if err != nil {
		return nil, err
	}
	// The global not-an-attack pool counts against every technique.
	trueNegs, err := src.TrueNegatives()
	if err != nil {
		return nil, err
	}
	negatives = append(negatives, trueNegs...)

	// Pad the negative class with other techniques' examples until total
	// labels reach ~10x positives, without replacement.
	pool, err := src.OtherTechniqueExamples(attack.UID)
	if err != nil {
		return nil, err
	}
	want := len(positives)*negativeRatio - len(positives) - len(negatives)
	if want > len(pool) {
		want = len(pool)
	}
	if want > 0 {
		perm := rng.Perm(len(pool))
		for _, i := range perm[:want] {
			negatives = append(negatives, pool[i])
		}
	}

	docs := make([][]string, 0, len(positives)+len(negatives))
	labels := make([]int, 0, cap(docs))
	for _, text := range positives {
		docs = append(docs, Tokenize(text))
		labels = append(labels, 1)
	}
	for _, text := range negatives {
		docs = append(docs, Tokenize(text))
		labels = append(labels, 0)
	}

	trainDocs, trainY, testDocs, testY := split(docs, labels, rng)
	vec := FitVectorizer(trainDocs)
	clf := &LogisticRegression{}
	clf.Fit(vec.TransformAll(trainDocs), trainY)

	score := 1.0
	if len(testDocs) > 0 {
		score = clf.Score(vec.TransformAll(testDocs), testY)
	}
	return &Model{
		TID:        attack.TID,
		Name:       attack.Name,
		Vectorizer: vec,
		Classifier: clf,
		Score:      score,
	}, nil
}

// split shuffles and holds out 20% for scoring.
func split(docs [][]string, labels []int, rng *rand.Rand) ([][]string, []int, [][]string, []int) {
	perm := rng.Perm(len(docs))
	cut := len(docs) * 8 / 10
	if cut == 0 {
		cut = len(docs)
	}
	var trainDocs, testDocs [][]string
	var trainY, testY []int
	for i, idx := range perm {
		if i < cut {
			trainDocs = append(trainDocs, docs[idx])
			trainY = append(trainY, labels[idx])
		} else {
			testDocs = append(testDocs, docs[idx])
			testY = append(testY, labels[idx])
		}
	}
	return trainDocs, trainY, testDocs, testY
}

// save writes the dictionary to a temp file and renames it into place.
func (l *Library) save() error {
	l.mu.RLock()
	data, err := json.Marshal(l.models)
	l.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode model dictionary: %w", err)
	}
	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, l.path)
}

// TechniqueRef identifies one matched technique.
type TechniqueRef struct {
	UID  string
	TID  string
	Name string
}

// Match runs every given technique's model over the sentence list and
// returns, per sentence index, the techniques whose model fired. Each
// technique vectorizes the whole list once. A technique without a model
// is skipped with a warning; an out-of-sync dictionary is never fatal.
func (l *Library) Match(attacks []models.Attack, sentences []string) map[int][]TechniqueRef {
	tokenized := make([][]string, len(sentences))
	for i, s := range sentences {
		tokenized[i] = Tokenize(s)
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	hits := make(map[int][]TechniqueRef)
	for _, a := range attacks {
		model, ok := l.models[a.UID]
		if !ok {
			l.log.Warnw("no model for technique, skipping", "tid", a.TID)
			continue
		}
		for i, toks := range tokenized {
			if model.Classifier.Predict(model.Vectorizer.Transform(toks)) {
				hits[i] = append(hits[i], TechniqueRef{UID: a.UID, TID: a.TID, Name: a.Name})
			}
		}
	}
	return hits
}
