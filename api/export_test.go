package api

var NewLimiterPool = newLimiterPool

const PruneThreshold = pruneThreshold

func (p *limiterPool) Size() int {
	return p.size()
}
