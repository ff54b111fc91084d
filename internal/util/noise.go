package util

import (
	"github.com/aquilax/go-perlin"
)

// NoiseParams задаёт параметры шума Перлина
type NoiseParams struct {
	Alpha   float64 // Сглаживание шума
	Beta    float64 // Частота шума
	Octaves int32   // Количество октав
}

// DefaultNoiseParams - параметры, которыми генерируется рельеф по умолчанию
var DefaultNoiseParams = NoiseParams{Alpha: 2.0, Beta: 2.0, Octaves: 3}

// NoiseField - независимый генератор шума Перлина с собственным сидом.
// Глобального состояния нет: каждый генератор мира держит свои поля.
type NoiseField struct {
	p *perlin.Perlin
}

// NewNoiseField создаёт поле шума
func NewNoiseField(params NoiseParams, seed int64) *NoiseField {
	return &NoiseField{p: perlin.NewPerlin(params.Alpha, params.Beta, params.Octaves, seed)}
}

// Noise1D возвращает значение шума около нуля; сумма октав может немного выходить за [-1, 1]
func (f *NoiseField) Noise1D(x float64) float64 {
	return f.p.Noise1D(x)
}

// Noise2D возвращает значение шума около нуля; сумма октав может немного выходить за [-1, 1]
func (f *NoiseField) Noise2D(x, y float64) float64 {
	return f.p.Noise2D(x, y)
}

// SubSeed выводит сид для отдельного поля шума из сида мира
func SubSeed(seed int64, salt int64) int64 {
	// splitmix64
	z := uint64(seed) + uint64(salt)*0x9E3779B97F4A7C15
	z = (z ^ (z >> 30)) * 0xBF58476D1CE4E5B9
	z = (z ^ (z >> 27)) * 0x94D049BB133111EB
	return int64(z ^ (z >> 31))
}
