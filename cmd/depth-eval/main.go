// Package main is a command that compares inverse depth fusion strategies on
// an archived RGB-D sequence: how many pixels survive fusion at each pyramid
// level and how far the fused estimates drift from the sensor depth.
package main

import (
	"flag"
	"math"
	"os"

	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"github.com/mpizenberg/vors/dataset/tararchive"
	"github.com/mpizenberg/vors/dataset/tumrgbd"
	"github.com/mpizenberg/vors/rimage"
	"github.com/mpizenberg/vors/vision/inversedepth"
)

var strategyNames = []string{"dso-mean", "statistically-similar", "random"}

func main() {
	associationsPtr := flag.String("associations", "associations.txt", "name of the associations file inside the archive")
	levelsPtr := flag.Int("levels", 6, "number of pyramid levels")
	thresholdPtr := flag.Uint("threshold", 7, "gradient threshold for candidate selection")
	flag.Parse()
	logger := golog.NewLogger("depth_eval")

	if flag.NArg() != 1 {
		logger.Fatal("usage: depth-eval [flags] <dataset.tar>")
	}
	if err := evaluate(flag.Arg(0), *associationsPtr, *levelsPtr, uint16(*thresholdPtr), logger); err != nil {
		logger.Fatal(err)
	}
}

// strategyStats accumulates fusion quality over a sequence. Frames where a
// strategy kept no pixel at all contribute to the fill ratio but are left out
// of the error average, which would otherwise be undefined.
type strategyStats struct {
	knownCells     int
	observedCells  int
	sumFrameRMSE   float64
	measuredFrames int
	emptyFrames    int
}

func evaluate(archivePath, associationsName string, levels int, threshold uint16, logger golog.Logger) error {
	//nolint:gosec
	archive, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(archive.Close)
	index, err := tararchive.BuildIndex(archive)
	if err != nil {
		return err
	}
	associationsFile, err := index.Open(archive, associationsName)
	if err != nil {
		return err
	}
	associations, err := tumrgbd.ParseAssociations(associationsFile)
	if err != nil {
		return err
	}
	logger.Infof("evaluating %d frames", len(associations))

	strategies := make(map[string]inversedepth.Strategy, len(strategyNames))
	for _, name := range strategyNames {
		strategy, err := inversedepth.NewStrategy(name)
		if err != nil {
			return err
		}
		strategies[name] = strategy
	}

	stats := map[string]*strategyStats{}
	for _, name := range strategyNames {
		stats[name] = &strategyStats{}
	}
	for _, assoc := range associations {
		depthFile, err := index.Open(archive, assoc.DepthPath)
		if err != nil {
			return err
		}
		depth, err := tumrgbd.ReadDepthPNG(depthFile)
		if err != nil {
			return err
		}
		imgFile, err := index.Open(archive, assoc.ImgPath)
		if err != nil {
			return err
		}
		img, err := tumrgbd.ReadGrayPNG(imgFile)
		if err != nil {
			return err
		}
		if err := evaluateFrame(depth, img, levels, threshold, strategies, stats); err != nil {
			return err
		}
	}

	for _, name := range strategyNames {
		s := stats[name]
		ratio := 0.0
		if s.observedCells > 0 {
			ratio = float64(s.knownCells) / float64(s.observedCells)
		}
		rmse := math.NaN()
		if s.measuredFrames > 0 {
			rmse = s.sumFrameRMSE / float64(s.measuredFrames)
		}
		logger.Infow("strategy evaluated",
			"strategy", name,
			"fill_ratio", ratio,
			"mean_frame_rmse_m", rmse,
			"empty_frames", s.emptyFrames,
		)
	}
	return nil
}

// evaluateFrame fuses one frame's observed inverse depth with every strategy
// and scores the fused pyramids against the mean-pooled sensor depth.
func evaluateFrame(
	depth *rimage.DepthMap,
	img *rimage.GrayMap,
	levels int,
	threshold uint16,
	strategies map[string]inversedepth.Strategy,
	stats map[string]*strategyStats,
) error {
	imgPyramid := rimage.MeanPyramid(levels, img)
	gradients := rimage.Gradients(imgPyramid)
	candidates := rimage.SelectCandidates(gradients, threshold)
	depthPyramid := rimage.MeanDepthPyramid(levels, depth)

	observed, err := rimage.MatZip(depthPyramid[1], candidates[0],
		func(d rimage.Depth, isCandidate bool) inversedepth.InverseDepth {
			if !isCandidate {
				return inversedepth.Unknown()
			}
			return inversedepth.FromDepth(tumrgbd.DepthScale, d, 1e-4)
		})
	if err != nil {
		return err
	}

	for name, strategy := range strategies {
		s := stats[name]
		idepthPyramid := inversedepth.Pyramid(levels-1, observed, strategy)
		sumSquared := 0.0
		n := 0
		for i, level := range idepthPyramid {
			reference := depthPyramid[i+1]
			for y := 0; y < level.Height(); y++ {
				for x := 0; x < level.Width(); x++ {
					raw := reference.At(x, y)
					if raw == 0 {
						continue
					}
					s.observedCells++
					idepth, _, ok := level.At(x, y).Value()
					if !ok || idepth <= 0 {
						continue
					}
					s.knownCells++
					diff := 1/idepth - float64(raw)/tumrgbd.DepthScale
					sumSquared += diff * diff
					n++
				}
			}
		}
		if n == 0 {
			s.emptyFrames++
			continue
		}
		s.sumFrameRMSE += math.Sqrt(sumSquared / float64(n))
		s.measuredFrames++
	}
	return nil
}
