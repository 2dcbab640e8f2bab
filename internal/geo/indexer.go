package geo

import (
	"github.com/uber/h3-go/v4"
)

// Resolution - фиксированный уровень сетки H3, на котором вычисляется ячейка инцидента.
// Ячейки уже сохраненных инцидентов не пересчитываются, поэтому смена значения делает их устаревшими.
const Resolution = 9

// Indexer переводит координаты в идентификатор ячейки
type Indexer interface {
	CellOf(lat, lon float64) string
}

type H3Indexer struct {
	resolution int
}

func NewH3Indexer() *H3Indexer {
	return &H3Indexer{resolution: Resolution}
}

// CellOf детерминированно возвращает ячейку H3 в виде hex-строки.
// Соседние точки по разные стороны границы ячейки получают разные идентификаторы.
func (i *H3Indexer) CellOf(lat, lon float64) string {
	return h3.LatLngToCell(h3.NewLatLng(lat, lon), i.resolution).String()
}
