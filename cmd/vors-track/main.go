// Package main is a command that tracks the camera trajectory of an archived
// RGB-D sequence and prints it in the TUM benchmark format.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/edaniels/golog"
	"go.viam.com/utils"

	"github.com/mpizenberg/vors/dataset/tararchive"
	"github.com/mpizenberg/vors/dataset/tumrgbd"
	"github.com/mpizenberg/vors/rimage"
	"github.com/mpizenberg/vors/vision/inversedepth"
	"github.com/mpizenberg/vors/vision/odometry"
)

func main() {
	cameraPtr := flag.String("camera", "icl", "camera calibration: fr1, fr2, fr3 or icl")
	associationsPtr := flag.String("associations", "associations.txt", "name of the associations file inside the archive")
	fusionPtr := flag.String("fusion", "statistically-similar", "inverse depth fusion strategy: dso-mean, statistically-similar or random")
	levelsPtr := flag.Int("levels", 6, "number of pyramid levels")
	thresholdPtr := flag.Uint("threshold", 7, "gradient threshold for candidate selection")
	priorPtr := flag.Bool("prior", false, "seed each frame with the previous relative motion")
	flag.Parse()
	logger := golog.NewLogger("vors_track")

	if flag.NArg() != 1 {
		logger.Fatal("usage: vors-track [flags] <dataset.tar>")
	}
	if err := track(flag.Arg(0), *cameraPtr, *associationsPtr, *fusionPtr,
		*levelsPtr, uint16(*thresholdPtr), *priorPtr, logger); err != nil {
		logger.Fatal(err)
	}
}

func track(
	archivePath, cameraName, associationsName, fusionName string,
	levels int,
	threshold uint16,
	useMotionPrior bool,
	logger golog.Logger,
) error {
	intrinsics, err := tumrgbd.NamedIntrinsics(cameraName)
	if err != nil {
		return err
	}
	fusion, err := inversedepth.NewStrategy(fusionName)
	if err != nil {
		return err
	}

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
	logger.Debugf("indexed %d archive entries", len(index))

	associationsFile, err := index.Open(archive, associationsName)
	if err != nil {
		return err
	}
	associations, err := tumrgbd.ParseAssociations(associationsFile)
	if err != nil {
		return err
	}
	logger.Infof("tracking %d associated frames", len(associations))

	tracker, err := odometry.NewTracker(odometry.Config{
		Levels:              levels,
		CandidatesThreshold: threshold,
		DepthScale:          tumrgbd.DepthScale,
		Intrinsics:          intrinsics,
		IdepthVariance:      1e-4,
		Fusion:              fusion,
	}, logger)
	if err != nil {
		return err
	}

	for i, assoc := range associations {
		depth, img, err := readFrame(index, archive, assoc)
		if err != nil {
			return err
		}
		if i == 0 {
			err = tracker.Init(assoc.DepthTimestamp, depth, assoc.ImgTimestamp, img)
		} else {
			err = tracker.Track(useMotionPrior, assoc.DepthTimestamp, depth, assoc.ImgTimestamp, img)
		}
		if err != nil {
			return err
		}
		timestamp, pose := tracker.CurrentFrame()
		fmt.Println(tumrgbd.Frame{Timestamp: timestamp, Pose: pose}.String())
		logger.Debugf("frame %d residual %.2f", i, tracker.LastResidual())
	}
	return nil
}

func readFrame(
	index tararchive.Index,
	archive *os.File,
	assoc tumrgbd.Association,
) (depth *rimage.DepthMap, img *rimage.GrayMap, err error) {
	depthFile, err := index.Open(archive, assoc.DepthPath)
	if err != nil {
		return nil, nil, err
	}
	depth, err = tumrgbd.ReadDepthPNG(depthFile)
	if err != nil {
		return nil, nil, err
	}
	imgFile, err := index.Open(archive, assoc.ImgPath)
	if err != nil {
		return nil, nil, err
	}
	img, err = tumrgbd.ReadGrayPNG(imgFile)
	if err != nil {
		return nil, nil, err
	}
	return depth, img, nil
}
