package detections

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/pkg/errors"
	ort "github.com/yalue/onnxruntime_go"
)

// libraryName returns the onnxruntime shared library file name for this OS.
func libraryName() string {
	switch runtime.GOOS {
	case "darwin":
		return "libonnxruntime.dylib"
	case "windows":
		return "onnxruntime.dll"
	default:
		return "libonnxruntime.so"
	}
}

// ResolveLibrary picks the onnxruntime shared library to load. An explicit
// path wins; otherwise the library is looked up next to the executable, in
// ./lib and in the working directory, falling back to the bare name so the
// system loader can search its default paths.
func ResolveLibrary(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", errors.Wrapf(err, "onnxruntime library %s", explicit)
		}
		return explicit, nil
	}

	name := libraryName()
	var dirs []string
	if exe, err := os.Executable(); err == nil {
		dirs = append(dirs, filepath.Dir(exe))
	}
	dirs = append(dirs, "lib", ".")

	for _, dir := range dirs {
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return name, nil
}

// InitRuntime loads the onnxruntime library and returns a func that tears
// the environment down again.
func InitRuntime(libPath string) (func(), error) {
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return nil, errors.Wrap(err, "initialize onnx environment")
	}
	return func() { _ = ort.DestroyEnvironment() }, nil
}

// CheckModel fails when the checkpoint file is missing.
func CheckModel(modelPath string) error {
	info, err := os.Stat(modelPath)
	if os.IsNotExist(err) {
		return errors.Errorf("model file not found: %s", modelPath)
	}
	if err != nil {
		return errors.Wrapf(err, "stat model %s", modelPath)
	}
	if info.IsDir() {
		return errors.Errorf("model path is a directory: %s", modelPath)
	}
	return nil
}
