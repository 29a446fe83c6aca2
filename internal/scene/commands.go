package scene

import "github.com/slipsnap/slipsnap/internal/display"

// Каждая мутация сцены — обратимая команда в упорядоченном списке с
// курсором. Undo/Redo просто двигают курсор, повторяя или откатывая
// команды; новая мутация после Undo обрезает хвост redo.

type command interface {
	apply(s *Scene)
	revert(s *Scene)
}

func (s *Scene) push(c command) {
	s.history = s.history[:s.cursor]
	c.apply(s)
	s.history = append(s.history, c)
	s.cursor++
}

// Undo откатывает последнюю мутацию. Возвращает false, если откатывать
// нечего.
func (s *Scene) Undo() bool {
	if s.cursor == 0 {
		return false
	}
	s.cursor--
	s.history[s.cursor].revert(s)
	return true
}

// Redo повторяет откатанную мутацию.
func (s *Scene) Redo() bool {
	if s.cursor >= len(s.history) {
		return false
	}
	s.history[s.cursor].apply(s)
	s.cursor++
	return true
}

type addCommand struct {
	obj *Object
}

func (c *addCommand) apply(s *Scene) {
	s.objects = append(s.objects, c.obj)
}

func (c *addCommand) revert(s *Scene) {
	s.detach(c.obj.ID)
}

type removeCommand struct {
	obj *Object
	idx int
}

func (c *removeCommand) apply(s *Scene) {
	for i, o := range s.objects {
		if o.ID == c.obj.ID {
			c.idx = i
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return
		}
	}
}

func (c *removeCommand) revert(s *Scene) {
	// Возврат в ту же позицию списка сохраняет порядок вставки.
	if c.idx < 0 || c.idx > len(s.objects) {
		c.idx = len(s.objects)
	}
	s.objects = append(s.objects[:c.idx], append([]*Object{c.obj}, s.objects[c.idx:]...)...)
}

type moveCommand struct {
	id       string
	from, to display.Rect
}

func (c *moveCommand) apply(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Bounds = c.to
	}
}

func (c *moveCommand) revert(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Bounds = c.from
	}
}

type scaleCommand struct {
	id       string
	from, to float64
}

func (c *scaleCommand) apply(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Scale = c.to
	}
}

func (c *scaleCommand) revert(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Scale = c.from
	}
}

type zCommand struct {
	id       string
	from, to int
}

func (c *zCommand) apply(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Z = c.to
	}
}

func (c *zCommand) revert(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Z = c.from
	}
}

type animCommand struct {
	id       string
	from, to AnimationSpec
}

func (c *animCommand) apply(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Animation = c.to.clone()
	}
}

func (c *animCommand) revert(s *Scene) {
	if o, ok := s.Object(c.id); ok {
		o.Animation = c.from.clone()
	}
}

func (s *Scene) detach(id string) {
	for i, o := range s.objects {
		if o.ID == id {
			s.objects = append(s.objects[:i], s.objects[i+1:]...)
			return
		}
	}
}
