package pipeline

import "vidtranslate/internal/queue"

type band struct {
	start int
	end   int
}

var stageBands = map[queue.Stage]band{
	queue.StageExtracting:   {0, 20},
	queue.StageTranscribing: {20, 40},
	queue.StageTranslating:  {40, 60},
	queue.StageVoiceCloning: {60, 65},
	queue.StageSynthesizing: {65, 80},
	queue.StageMuxing:       {80, 100},
}

var stageMessages = map[queue.Stage]string{
	queue.StageExtracting:   "Extracting audio",
	queue.StageTranscribing: "Transcribing audio",
	queue.StageTranslating:  "Translating text",
	queue.StageVoiceCloning: "Cloning voice",
	queue.StageSynthesizing: "Generating translated speech",
	queue.StageMuxing:       "Combining audio and video",
}

// BandFor returns the progress range a stage reports within.
func BandFor(stage queue.Stage) (start, end int) {
	b := stageBands[stage]
	return b.start, b.end
}

// chunkPercent maps synthesized chunk progress into the synthesizing band.
func chunkPercent(done, total int) int {
	b := stageBands[queue.StageSynthesizing]
	if total <= 0 {
		return b.start
	}
	if done > total {
		done = total
	}
	return b.start + (b.end-b.start)*done/total
}
