package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// supportedExtensions lists image extensions the scanner accepts.
var supportedExtensions = map[string]string{
	".png":  "png",
	".jpg":  "jpeg",
	".jpeg": "jpeg",
	".bmp":  "bmp",
	".tif":  "tiff",
	".tiff": "tiff",
}

// discoverImageFiles finds all image files under the given paths matching
// the include/exclude patterns.
func discoverImageFiles(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var imageFiles []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			files, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			imageFiles = append(imageFiles, files...)
		} else if shouldIncludeFile(arg, includePatterns, excludePatterns) {
			imageFiles = append(imageFiles, arg)
		}
	}

	return imageFiles, nil
}

// discoverInDirectory walks a directory collecting image files.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if isSupportedImage(path) && shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	return files, filepath.Walk(dir, walkFn)
}

// shouldIncludeFile applies include and exclude glob patterns to a path's
// base name. An empty include list matches everything.
func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	base := filepath.Base(path)

	for _, pattern := range excludePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return false
		}
	}

	if len(includePatterns) == 0 {
		return true
	}
	for _, pattern := range includePatterns {
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// isSupportedImage reports whether the path has a known image extension.
func isSupportedImage(path string) bool {
	_, ok := supportedExtensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// formatFromPath derives the submission format from a file extension.
func formatFromPath(path string) string {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}
