// Package experiment runs the dynamic selection experiment end to end: split
// and scale the data, train a bagged pool of calibrated perceptrons, fit every
// configured selection method on the DSEL split and score it on the test split.
package experiment

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"deslab/internal/cfg"
	"deslab/internal/dataset"
	"deslab/internal/des"
	"deslab/internal/ensemble"
	"deslab/internal/eval"
	"deslab/internal/linear"
	"deslab/internal/metrics"
	"deslab/internal/storage"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// Engine runs experiments for one configuration.
type Engine struct {
	config   *cfg.Settings
	recorder metrics.Recorder
	store    *storage.Store // optional run history
}

// NewEngine creates an engine. recorder and store may be nil.
func NewEngine(config *cfg.Settings, recorder metrics.Recorder, store *storage.Store) *Engine {
	if recorder == nil {
		recorder = metrics.Nop{}
	}
	return &Engine{config: config, recorder: recorder, store: store}
}

// splits are the three disjoint parts of a dataset, already standardised.
type splits struct {
	train, dsel, test *dataset.Dataset
}

// Run executes the experiment on d. Any failing step aborts the run.
func (e *Engine) Run(ctx context.Context, d *dataset.Dataset, source Source) (*Results, error) {
	res, err := e.run(ctx, d, source)
	if err != nil {
		e.recorder.Failed()
		return nil, err
	}
	e.recorder.RunFinished()
	return res, nil
}

func (e *Engine) run(ctx context.Context, d *dataset.Dataset, source Source) (*Results, error) {
	if err := d.Validate(); err != nil {
		return nil, fmt.Errorf("dataset %s: %w", source.Name, err)
	}
	res := &Results{
		StartTime:    time.Now(),
		Dataset:      source,
		Samples:      d.Len(),
		Features:     d.NumFeatures(),
		FeatureNames: d.Features,
		Classes:      d.Classes,
		PoolSize:     e.config.PoolSize,
		Params:       params(e.config),
	}
	e.recorder.DatasetLoaded(d.Len())

	log.Info().
		Str("dataset", source.Name).
		Int("samples", d.Len()).
		Int("features", d.NumFeatures()).
		Int("classes", d.NumClasses()).
		Msg("Starting experiment")

	s, err := e.split(d)
	if err != nil {
		return nil, err
	}
	res.TrainSize, res.DSELSize, res.TestSize = s.train.Len(), s.dsel.Len(), s.test.Len()

	pool, err := e.fitPool(ctx, s, res)
	if err != nil {
		return nil, err
	}

	res.Methods, err = e.evaluate(ctx, pool, s)
	if err != nil {
		return nil, err
	}
	res.EndTime = time.Now()

	if e.store != nil {
		if err := e.persist(res); err != nil {
			return nil, err
		}
	}

	log.Info().
		Dur("elapsed", res.EndTime.Sub(res.StartTime)).
		Int("methods", len(res.Methods)).
		Msg("Experiment finished")
	return res, nil
}

// split holds out the test set, standardises on the training part and then
// splits the training part into the pool's training data and DSEL.
func (e *Engine) split(d *dataset.Dataset) (splits, error) {
	rng := rand.New(rand.NewSource(e.config.Seed))

	train, test, err := dataset.TrainTestSplit(d, e.config.TestSize, rng, e.config.Stratify)
	if err != nil {
		return splits{}, fmt.Errorf("train/test split: %w", err)
	}

	scaler := dataset.NewStandardScaler()
	if err := scaler.Fit(train.X); err != nil {
		return splits{}, fmt.Errorf("fit scaler: %w", err)
	}
	if train, err = scaler.TransformDataset(train); err != nil {
		return splits{}, err
	}
	if test, err = scaler.TransformDataset(test); err != nil {
		return splits{}, err
	}

	train, dsel, err := dataset.TrainTestSplit(train, e.config.DSELSize, rng, e.config.Stratify)
	if err != nil {
		return splits{}, fmt.Errorf("DSEL split: %w", err)
	}

	log.Debug().
		Int("train", train.Len()).
		Int("dsel", dsel.Len()).
		Int("test", test.Len()).
		Msg("Data split")
	return splits{train: train, dsel: dsel, test: test}, nil
}

func (e *Engine) fitPool(ctx context.Context, s splits, res *Results) ([]ensemble.Classifier, error) {
	epochs, folds := e.config.PerceptronEpochs, e.config.CalibrationFolds
	bag := ensemble.NewBagging(func() ensemble.Estimator {
		return linear.NewCalibrated(folds, epochs)
	}, e.config.PoolSize, e.config.Seed)
	bag.Workers = e.config.Workers

	start := time.Now()
	if err := bag.Fit(ctx, s.train.X, s.train.Y, s.train.NumClasses()); err != nil {
		return nil, err
	}
	res.PoolFitTime = time.Since(start)

	acc, err := ensemble.Score(ctx, bag, s.test.X, s.test.Y)
	if err != nil {
		return nil, fmt.Errorf("score pool: %w", err)
	}
	res.PoolAccuracy = acc
	e.recorder.PoolFitted(res.PoolFitTime, acc)

	log.Info().
		Int("estimators", e.config.PoolSize).
		Float64("accuracy", acc).
		Dur("elapsed", res.PoolFitTime).
		Msg("Pool fitted")
	return bag.Pool()
}

// evaluate fits and scores every configured method. Methods run concurrently,
// bounded by Workers; results keep the configured order.
func (e *Engine) evaluate(ctx context.Context, pool []ensemble.Classifier, s splits) ([]MethodResult, error) {
	opts := e.config.DESOptions()
	out := make([]MethodResult, len(e.config.Methods))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, e.config.Workers))
	for i, name := range e.config.Methods {
		g.Go(func() error {
			r, err := e.evaluateMethod(gctx, name, pool, opts, s)
			if err != nil {
				return err
			}
			out[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// labeledPredictor is implemented by baselines such as the Oracle whose
// predictions depend on the true labels.
type labeledPredictor interface {
	PredictLabeled(ctx context.Context, X [][]float64, y []int) ([]int, error)
}

// predictTest labels the test split once; accuracy, kappa and recall are all
// derived from the same predictions.
func predictTest(ctx context.Context, m des.Method, test *dataset.Dataset) ([]int, error) {
	if lp, ok := m.(labeledPredictor); ok {
		return lp.PredictLabeled(ctx, test.X, test.Y)
	}
	return ensemble.PredictAll(ctx, m, test.X)
}

func (e *Engine) evaluateMethod(ctx context.Context, name string, pool []ensemble.Classifier, opts des.Options, s splits) (MethodResult, error) {
	m, err := des.New(name, pool, opts)
	if err != nil {
		return MethodResult{}, err
	}
	if opts.Mode != "" && !des.UsesMode(name) {
		log.Warn().
			Str("method", m.Name()).
			Str("mode", string(opts.Mode)).
			Msg("Method has a fixed combination rule, mode ignored")
	}

	start := time.Now()
	if err := m.Fit(s.dsel.X, s.dsel.Y); err != nil {
		return MethodResult{}, err
	}
	fitTime := time.Since(start)
	e.recorder.MethodFitted(m.Name(), fitTime)

	start = time.Now()
	pred, err := predictTest(ctx, m, s.test)
	if err != nil {
		return MethodResult{}, fmt.Errorf("%s: %w", m.Name(), err)
	}
	predictTime := time.Since(start)
	acc, err := eval.Accuracy(s.test.Y, pred)
	if err != nil {
		return MethodResult{}, fmt.Errorf("%s: %w", m.Name(), err)
	}
	e.recorder.MethodScored(m.Name(), predictTime, s.test.Len(), acc)

	kappa, err := eval.CohenKappa(s.test.Y, pred, s.test.NumClasses())
	if err != nil {
		return MethodResult{}, fmt.Errorf("%s: %w", m.Name(), err)
	}
	recall, err := eval.Recall(s.test.Y, pred, s.test.NumClasses())
	if err != nil {
		return MethodResult{}, fmt.Errorf("%s: %w", m.Name(), err)
	}

	log.Debug().
		Str("method", m.Name()).
		Float64("accuracy", acc).
		Float64("kappa", kappa).
		Dur("fit", fitTime).
		Dur("predict", predictTime).
		Msg("Method evaluated")

	return MethodResult{
		Name:        m.Name(),
		Accuracy:    acc,
		Kappa:       kappa,
		Recall:      recall,
		FitTime:     fitTime,
		PredictTime: predictTime,
	}, nil
}

func (e *Engine) persist(res *Results) error {
	rec, err := e.store.SaveRun(res.Record())
	if err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	res.RunID = rec.ID

	err = e.store.StoreDataset(storage.DatasetRecord{
		Name:     res.Dataset.Name,
		Source:   res.Dataset.Origin,
		Rows:     res.Samples,
		Features: res.FeatureNames,
		Classes:  res.Classes,
	})
	if err != nil {
		return fmt.Errorf("save dataset: %w", err)
	}
	log.Debug().Str("run_id", rec.ID).Msg("Run saved")
	return nil
}
