package vosk

import (
	"os"
	"path/filepath"
)

// ModelDirName is the model directory looked up under the model path.
const ModelDirName = "vosk"

// defaultModelPath returns the default location of the Vosk model.
func defaultModelPath() string {
	modelPath := os.Getenv("MAYA_MODEL_PATH")
	if modelPath == "" {
		homeDir, _ := os.UserHomeDir()
		modelPath = filepath.Join(homeDir, ".maya", "models")
	}
	return filepath.Join(modelPath, ModelDirName)
}
