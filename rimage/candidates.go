package rimage

// SelectCandidates marks, at every level of a squared-norm gradient pyramid,
// the pixels whose gradient magnitude exceeds the threshold. Selection is
// independent per level and per pixel; flat regions carry no alignment
// information and stay unselected.
func SelectCandidates(gradients []*Mat[uint16], threshold uint16) []*Mat[bool] {
	squared := uint32(threshold) * uint32(threshold)
	masks := make([]*Mat[bool], 0, len(gradients))
	for _, g := range gradients {
		masks = append(masks, MatMap(g, func(v uint16) bool {
			return uint32(v) > squared
		}))
	}
	return masks
}
