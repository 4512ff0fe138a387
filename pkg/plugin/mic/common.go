package mic

// DefaultSampleRate is the capture rate used when none is configured.
const DefaultSampleRate = 16000
