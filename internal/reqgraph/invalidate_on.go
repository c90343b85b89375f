package reqgraph

// FileCreateInvalidation is the sum type consumed by InvalidateOnFileCreate.
// Exactly one shape must be populated:
//   - Glob only: file-create matching Glob invalidates.
//   - FilePath only: create of that exact path invalidates.
//   - FileName + AboveFilePath: create of a file named FileName anywhere on
//     the path from AboveFilePath up to the filesystem root invalidates.
type FileCreateInvalidation struct {
	Glob          string
	FilePath      string
	FileName      string
	AboveFilePath string
}

func (s FileCreateInvalidation) shape() (isGlob, isPlain, isAbove bool) {
	isGlob = s.Glob != "" && s.FilePath == "" && s.FileName == "" && s.AboveFilePath == ""
	isPlain = s.FilePath != "" && s.Glob == "" && s.FileName == "" && s.AboveFilePath == ""
	isAbove = s.FileName != "" && s.AboveFilePath != "" && s.Glob == "" && s.FilePath == ""
	return
}

// InvalidateOnFileUpdate ensures a File node for path and adds an
// invalidated_by_update edge from request to it.
func (g *Graph) InvalidateOnFileUpdate(requestID, path string) error {
	_, reqID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	fileID := g.ensureFileNode(path)
	g.cg.AddEdge(reqID, fileID, EdgeInvalidatedByUpdate)
	return nil
}

// InvalidateOnFileDelete ensures a File node for path and adds an
// invalidated_by_delete edge from request to it.
func (g *Graph) InvalidateOnFileDelete(requestID, path string) error {
	_, reqID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	fileID := g.ensureFileNode(path)
	g.cg.AddEdge(reqID, fileID, EdgeInvalidatedByDelete)
	return nil
}

// InvalidateOnFileCreate dispatches on the shape of spec to one of the three
// create-invalidation encodings, returning InvalidInvalidation for any other
// shape.
func (g *Graph) InvalidateOnFileCreate(requestID string, spec FileCreateInvalidation) error {
	_, reqID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}

	isGlob, isPlain, isAbove := spec.shape()
	switch {
	case isGlob:
		globID := g.ensureGlobNode(spec.Glob)
		g.cg.AddEdge(reqID, globID, EdgeInvalidatedByCreate)
		return nil
	case isPlain:
		fileID := g.ensureFileNode(spec.FilePath)
		g.cg.AddEdge(reqID, fileID, EdgeInvalidatedByCreate)
		return nil
	case isAbove:
		return g.invalidateOnFileCreateAbove(reqID, spec.FileName, spec.AboveFilePath)
	default:
		return &InvalidInvalidation{RequestID: requestID, Msg: "exactly one of glob, filePath, or {fileName, aboveFilePath} must be set"}
	}
}

// InvalidateOnStartup marks requestID unpredictable: it reruns unconditionally
// on every process startup.
func (g *Graph) InvalidateOnStartup(requestID string) error {
	_, reqID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	g.unpredictableNodeIds[reqID] = struct{}{}
	return nil
}

// InvalidateOnEnvChange ensures an Env node for name recording currentValue,
// and adds an invalidated_by_update edge from request to it.
func (g *Graph) InvalidateOnEnvChange(requestID, name string, currentValue string) error {
	_, reqID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	envID := g.ensureEnvNode(name, currentValue, true)
	g.cg.AddEdge(reqID, envID, EdgeInvalidatedByUpdate)
	return nil
}

// InvalidateOnOptionChange ensures an Option node for name recording the
// hash of currentValue, and adds an invalidated_by_update edge from request
// to it.
func (g *Graph) InvalidateOnOptionChange(requestID, name string, currentValue any) error {
	_, reqID, err := g.requestNode(requestID)
	if err != nil {
		return err
	}
	optID := g.ensureOptionNode(name, hashOptionValue(currentValue))
	g.cg.AddEdge(reqID, optID, EdgeInvalidatedByUpdate)
	return nil
}

func (g *Graph) ensureFileNode(path string) ID {
	if _, id, ok := g.cg.GetNodeByContentKey(path); ok {
		return id
	}
	return g.AddNode(NewFileNode(path))
}

func (g *Graph) ensureGlobNode(pattern string) ID {
	if _, id, ok := g.cg.GetNodeByContentKey(pattern); ok {
		return id
	}
	return g.AddNode(NewGlobNode(pattern))
}

func (g *Graph) ensureFileNameNode(segment string) ID {
	key := "file_name:" + segment
	if _, id, ok := g.cg.GetNodeByContentKey(key); ok {
		return id
	}
	return g.AddNode(NewFileNameNode(segment))
}

func (g *Graph) ensureEnvNode(name, value string, present bool) ID {
	key := "env:" + name
	if n, id, ok := g.cg.GetNodeByContentKey(key); ok {
		n.SetEnvValue(value, present)
		return id
	}
	return g.AddNode(NewEnvNode(name, value, present))
}

func (g *Graph) ensureOptionNode(name, hash string) ID {
	key := "option:" + name
	if n, id, ok := g.cg.GetNodeByContentKey(key); ok {
		n.SetOptionHash(hash)
		return id
	}
	return g.AddNode(NewOptionNode(name, hash))
}
