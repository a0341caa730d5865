package pipeline

import (
	"errors"
	"fmt"

	"fin-rag-api/internal/application/query"
	apperrors "fin-rag-api/pkg/errors"
)

// Stage 流水线阶段
type Stage string

const (
	StageDecompose  Stage = "decompose"
	StageRetrieve   Stage = "retrieve"
	StageExtract    Stage = "extract"
	StageSynthesize Stage = "synthesize"
	StageGenerate   Stage = "generate"
)

// ErrSearchTimeout 单次检索超时，与"没有结果"区分
var ErrSearchTimeout = apperrors.New(apperrors.CodeTimeout, "search timed out")

// ErrGenerateTimeout 答案生成超时
var ErrGenerateTimeout = apperrors.New(apperrors.CodeTimeout, "answer generation timed out")

// StageError 标明失败发生在哪个阶段
// 拆解之后的阶段失败时 Decomposed 保留拆解结果
type StageError struct {
	Stage      Stage
	Err        error
	Decomposed *query.DecomposedQuery
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s stage failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage 返回错误链中的阶段，没有则为空
func FailedStage(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}

// FailedQuery 返回失败前已完成的拆解结果，没有则为 nil
func FailedQuery(err error) *query.DecomposedQuery {
	var se *StageError
	if errors.As(err, &se) {
		return se.Decomposed
	}
	return nil
}

func stageErr(stage Stage, err error) error {
	return stageErrFor(stage, nil, err)
}

func stageErrFor(stage Stage, dq *query.DecomposedQuery, err error) error {
	if err == nil {
		return nil
	}
	return &StageError{Stage: stage, Err: err, Decomposed: dq}
}

// rootCause 跳过 AppError 包装，取原始错误
func rootCause(err error) error {
	var se *StageError
	if errors.As(err, &se) {
		err = se.Err
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Err != nil {
		return appErr.Err
	}
	return err
}
